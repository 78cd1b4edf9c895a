package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/config"
	"github.com/GrainArc/SurveyTIN/methods"
	"github.com/google/uuid"
)

// ExportContours 将等值线导出为指定格式并打包为zip字节流
// format支持 dxf / shp / geojson，文件名取拼音首字母
func ExportContours(contours []Tin.ContourLine, name string, format string) ([]byte, string, error) {
	en := methods.ConvertToInitials(name)
	if en == "" {
		en = "dgx"
	}

	outDir := filepath.Join(config.Download, "Export", uuid.New().String())
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, "", fmt.Errorf("创建导出目录失败: %w", err)
	}
	defer os.RemoveAll(outDir)

	switch format {
	case "dxf":
		if err := methods.ConvertContoursToDXF(contours, filepath.Join(outDir, en+".dxf")); err != nil {
			return nil, "", err
		}
	case "shp":
		if err := methods.ConvertContoursToSHP(contours, filepath.Join(outDir, en+".shp")); err != nil {
			return nil, "", err
		}
	case "geojson":
		fc := methods.ContoursToFeatureCollection(contours)
		data, err := json.Marshal(fc)
		if err != nil {
			return nil, "", err
		}
		if err := os.WriteFile(filepath.Join(outDir, en+".geojson"), data, 0644); err != nil {
			return nil, "", err
		}
	default:
		return nil, "", fmt.Errorf("不支持的导出格式: %s", format)
	}

	zipData, err := methods.ZipFileOut(outDir)
	if err != nil {
		return nil, "", err
	}
	return zipData, en + ".zip", nil
}

// ExportMesh 将TIN网格导出为指定格式并打包为zip字节流
func ExportMesh(m *Tin.TinMesh, name string, format string) ([]byte, string, error) {
	en := methods.ConvertToInitials(name)
	if en == "" {
		en = "tin"
	}

	outDir := filepath.Join(config.Download, "Export", uuid.New().String())
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, "", fmt.Errorf("创建导出目录失败: %w", err)
	}
	defer os.RemoveAll(outDir)

	switch format {
	case "dxf":
		if err := methods.ConvertTinToDXF(m, filepath.Join(outDir, en+".dxf")); err != nil {
			return nil, "", err
		}
	case "shp":
		if err := methods.ConvertTinToSHP(m, filepath.Join(outDir, en+".shp")); err != nil {
			return nil, "", err
		}
	case "geojson":
		fc := methods.TinToFeatureCollection(m)
		data, err := json.Marshal(fc)
		if err != nil {
			return nil, "", err
		}
		if err := os.WriteFile(filepath.Join(outDir, en+".geojson"), data, 0644); err != nil {
			return nil, "", err
		}
	default:
		return nil, "", fmt.Errorf("不支持的导出格式: %s", format)
	}

	zipData, err := methods.ZipFileOut(outDir)
	if err != nil {
		return nil, "", err
	}
	return zipData, en + ".zip", nil
}
