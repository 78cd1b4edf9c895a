package views

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/methods"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/GrainArc/SurveyTIN/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

type ContourRequest struct {
	BSM      string    `json:"bsm" binding:"required"` // TIN成果标识
	Name     string    `json:"name"`
	Source   string    `json:"source"`   // grid / tin，默认grid
	Levels   []float64 `json:"levels"`   // 显式高程级别
	Interval float64   `json:"interval"` // 等距生成，与levels二选一
	Smooth   float64   `json:"smooth"`   // 平滑系数，0不平滑
	GridSize int       `json:"grid_size"`
}

// 级别列表：显式优先，否则按间距在高程范围内等距取整生成
func resolveLevels(req *ContourRequest, stats Tin.MeshStats) ([]float64, error) {
	if len(req.Levels) > 0 {
		levels := append([]float64(nil), req.Levels...)
		sort.Float64s(levels)
		return levels, nil
	}
	if req.Interval <= 0 {
		return nil, fmt.Errorf("需要指定levels或正的interval")
	}
	var levels []float64
	start := math.Ceil(stats.MinZ/req.Interval) * req.Interval
	for v := start; v <= stats.MaxZ; v += req.Interval {
		levels = append(levels, v)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("间距%.3f在高程范围[%.3f, %.3f]内取不到级别", req.Interval, stats.MinZ, stats.MaxZ)
	}
	return levels, nil
}

// MakeContours 从TIN成果生成等值线并入库
func (uc *UserController) MakeContours(c *gin.Context) {
	var req ContourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "grid"
	}
	if req.Source != "grid" && req.Source != "tin" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source只支持grid或tin"})
		return
	}
	if req.GridSize <= 0 {
		req.GridSize = 256
	}

	mesh, record, err := services.LoadMesh(models.DB, req.BSM)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		req.Name = record.Name + "_DGX"
	}

	levels, err := resolveLevels(&req, mesh.GetMeshStats())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contours []Tin.ContourLine
	if req.Source == "tin" {
		contours = Tin.GenerateTINContours(mesh, levels)
	} else {
		grid, gridX, gridY, err := mesh.SampleGrid(req.GridSize, req.GridSize)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		contours = Tin.GenerateContours(grid, gridX, gridY, levels)
	}
	if req.Smooth > 0 {
		contours = Tin.SmoothContours(contours, req.Smooth)
	}

	fc := methods.ContoursToFeatureCollection(contours)
	geoJSONData, err := json.Marshal(fc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	levelsJSON, _ := json.Marshal(levels)

	result := models.ContourRecord{
		BSM:     uuid.New().String(),
		TinBSM:  req.BSM,
		Name:    req.Name,
		Source:  req.Source,
		Smooth:  req.Smooth,
		Levels:  levelsJSON,
		GeoJson: geoJSONData,
		Date:    time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := models.DB.Create(&result).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存等值线失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bsm":      result.BSM,
		"levels":   levels,
		"contours": fc,
	})
}

// 等值线成果列表，不含几何数据
func (uc *UserController) ShowContourRecords(c *gin.Context) {
	tinBSM := c.Query("tin_bsm")
	DB := models.DB
	query := DB.Model(&models.ContourRecord{}).
		Select("bsm, tin_bsm, name, source, smooth, levels, date").Order("date desc")
	if tinBSM != "" {
		query = query.Where("tin_bsm = ?", tinBSM)
	}
	var mytable []models.ContourRecord
	query.Find(&mytable)
	if len(mytable) == 0 {
		c.JSON(200, []interface{}{})
		return
	}
	data := methods.LowerJSONTransform(mytable)
	c.JSON(http.StatusOK, data)
}

// 等值线几何获取，原样输出存储的FeatureCollection
func (uc *UserController) ShowContour(c *gin.Context) {
	bsm := c.Query("bsm")
	var record models.ContourRecord
	if models.DB.Where("bsm = ?", bsm).First(&record).Error != nil {
		c.JSON(http.StatusNotFound, "Record not found")
		return
	}
	c.Data(http.StatusOK, "application/json", record.GeoJson)
}

// 等值线成果删除
func (uc *UserController) DelContour(c *gin.Context) {
	bsm := c.Query("bsm")
	DB := models.DB
	var record models.ContourRecord
	if DB.Where("bsm = ?", bsm).First(&record).Error != nil {
		c.JSON(http.StatusNotFound, "Record not found")
		return
	}
	DB.Where("bsm = ?", bsm).Delete(&models.ContourRecord{})
	c.JSON(http.StatusOK, "OK")
}

// 等值线导出，format支持dxf/shp/geojson，返回zip
func (uc *UserController) DownloadContour(c *gin.Context) {
	bsm := c.Query("bsm")
	format := c.DefaultQuery("format", "dxf")

	var record models.ContourRecord
	if models.DB.Where("bsm = ?", bsm).First(&record).Error != nil {
		c.JSON(http.StatusNotFound, "Record not found")
		return
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(record.GeoJson, &fc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "等值线数据解析失败"})
		return
	}
	contours := methods.FeatureCollectionToContours(&fc)
	data, filename, err := services.ExportContours(contours, record.Name, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/zip", data)
}
