package methods

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GrainArc/SurveyTIN/Tin"
)

func sampleContours() []Tin.ContourLine {
	return []Tin.ContourLine{
		{Level: 5, Polylines: []Tin.Polyline{
			{Points: [][2]float64{{0, 0}, {1, 0.5}, {2, 1}}},
		}},
		{Level: 10, Polylines: []Tin.Polyline{
			{Points: [][2]float64{{0, 2}, {2, 2.5}}},
		}},
	}
}

func TestConvertContoursToSHP(t *testing.T) {
	dir := t.TempDir()
	if err := ConvertContoursToSHP(sampleContours(), filepath.Join(dir, "dgx.shp")); err != nil {
		t.Fatalf("导出shapefile失败: %v", err)
	}
	for _, ext := range []string{".shp", ".shx", ".dbf", ".cpg", ".prj"} {
		info, err := os.Stat(filepath.Join(dir, "dgx"+ext))
		if err != nil {
			t.Fatalf("缺少%s文件: %v", ext, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s文件为空", ext)
		}
	}
	cpg, _ := os.ReadFile(filepath.Join(dir, "dgx.cpg"))
	if string(cpg) != "GBK" {
		t.Errorf("cpg编码声明不符: %s", cpg)
	}
}

func TestConvertContoursToDXF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dgx.dxf")
	if err := ConvertContoursToDXF(sampleContours(), path); err != nil {
		t.Fatalf("导出DXF失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取DXF失败: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "DGX_5") || !strings.Contains(text, "DGX_10") {
		t.Error("缺少按高程级别命名的图层")
	}
	if !strings.Contains(text, "LWPOLYLINE") {
		t.Error("缺少多段线实体")
	}
}
