package views

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/methods"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type SurveyUpload struct {
	Name       string          `json:"name" binding:"required"`
	MAC        string          `json:"mac"`
	Points     [][]float64     `json:"points"`
	Geojson    json.RawMessage `json:"geojson"` // 点要素集，与points二选一
	Breaklines [][2]int        `json:"breaklines"`
}

// geojsonToPoints 从点要素集提取三维点，高程与点号取自z、pid属性
func geojsonToPoints(data []byte) ([]Tin.Point3D, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("无效的GeoJSON格式: %w", err)
	}
	var points []Tin.Point3D
	for _, feature := range fc.Features {
		pt, ok := feature.Geometry.(orb.Point)
		if !ok {
			continue
		}
		p := Tin.Point3D{X: pt[0], Y: pt[1], ID: len(points)}
		if z, ok := feature.Properties["z"].(float64); ok {
			p.Z = z
		}
		if pid, ok := feature.Properties["pid"].(float64); ok {
			p.ID = int(pid)
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("GeoJSON中没有点要素")
	}
	return points, nil
}

// 测量点批次导入（JSON坐标数组或GeoJSON点要素集）
func (uc *UserController) InSurveyBatch(c *gin.Context) {
	var jsonData SurveyUpload
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	var points []Tin.Point3D
	var err error
	if len(jsonData.Points) > 0 {
		points, err = Tin.CoordsToPoint3D(jsonData.Points)
	} else if len(jsonData.Geojson) > 0 {
		points, err = geojsonToPoints(jsonData.Geojson)
	} else {
		err = fmt.Errorf("需要提供points或geojson")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(points) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "测量点不能少于3个"})
		return
	}

	bsm := uuid.New().String()
	if err := saveSurveyBatch(bsm, jsonData.Name, jsonData.MAC, points, jsonData.Breaklines); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bsm": bsm, "point_count": len(points)})
}

// 测量点文件导入，支持txt/dat/csv及其zip、rar压缩包
func (uc *UserController) InSurveyFile(c *gin.Context) {
	name := c.PostForm("name")
	MAC := c.PostForm("mac")
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请上传测量点文件"})
		return
	}
	if name == "" {
		name = file.Filename[0 : len(file.Filename)-len(filepath.Ext(file.Filename))]
	}

	bsm := uuid.New().String()
	path, _ := filepath.Abs("./TempFile/" + bsm + "/" + file.Filename)
	dirpath := filepath.Dir(path)
	if err = c.SaveUploadedFile(file, path); err != nil {
		c.String(500, "Internal server error")
		return
	}
	defer os.RemoveAll(dirpath)
	if filepath.Ext(path) == ".zip" || filepath.Ext(path) == ".rar" {
		methods.Unzip(path)
	}

	pointFile := findPointFile(dirpath)
	if pointFile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "压缩包中未找到测量点文件"})
		return
	}
	points, err := methods.ParsePointFile(pointFile)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(points) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "测量点不能少于3个"})
		return
	}

	if err := saveSurveyBatch(bsm, name, MAC, points, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bsm": bsm, "point_count": len(points)})
}

func findPointFile(dirpath string) string {
	for _, ext := range []string{"txt", "dat", "csv"} {
		if f := methods.FindFileByExt(dirpath, ext); f != nil {
			return *f
		}
	}
	return ""
}

func saveSurveyBatch(bsm, name, mac string, points []Tin.Point3D, breaklines [][2]int) error {
	DB := models.DB
	minZ, maxZ := math.Inf(1), math.Inf(-1)
	rows := make([]models.SurveyPoint, 0, len(points))
	pidSet := make(map[int]bool, len(points))
	for _, p := range points {
		minZ = math.Min(minZ, p.Z)
		maxZ = math.Max(maxZ, p.Z)
		pidSet[p.ID] = true
		rows = append(rows, models.SurveyPoint{BSM: bsm, PID: p.ID, X: p.X, Y: p.Y, Z: p.Z})
	}

	header := models.SurveyBatch{
		BSM:        bsm,
		Name:       name,
		EN:         methods.ConvertToInitials(name),
		MAC:        mac,
		PointCount: len(points),
		MinZ:       minZ,
		MaxZ:       maxZ,
		Date:       time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := DB.Create(&header).Error; err != nil {
		return fmt.Errorf("保存批次失败: %w", err)
	}
	if err := DB.CreateInBatches(rows, 1000).Error; err != nil {
		return fmt.Errorf("保存测量点失败: %w", err)
	}
	for _, bl := range breaklines {
		if !pidSet[bl[0]] || !pidSet[bl[1]] || bl[0] == bl[1] {
			continue
		}
		DB.Create(&models.SurveyBreakline{BSM: bsm, StartPID: bl[0], EndPID: bl[1]})
	}
	return nil
}

// 批次列表
func (uc *UserController) ShowSurveyBatch(c *gin.Context) {
	var mytable []models.SurveyBatch
	DB := models.DB
	DB.Order("date desc").Find(&mytable)
	if len(mytable) == 0 {
		c.JSON(200, []interface{}{})
		return
	}
	data := methods.LowerJSONTransform(mytable)
	c.JSON(http.StatusOK, data)
}

// 批次点位获取，输出GeoJSON点集
func (uc *UserController) ShowSurveyPoints(c *gin.Context) {
	bsm := c.Query("bsm")
	points, _, err := loadSurveyPoints(bsm)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, methods.PointsToFeatureCollection(points))
}

// 批次断裂线获取
func (uc *UserController) ShowSurveyBreaklines(c *gin.Context) {
	bsm := c.Query("bsm")
	var mytable []models.SurveyBreakline
	DB := models.DB
	DB.Where("bsm = ?", bsm).Find(&mytable)
	if len(mytable) == 0 {
		c.JSON(200, []interface{}{})
		return
	}
	data := methods.LowerJSONTransform(mytable)
	c.JSON(http.StatusOK, data)
}

type BreaklineUpload struct {
	BSM   string   `json:"bsm" binding:"required"`
	Lines [][2]int `json:"lines" binding:"required"`
}

// 断裂线导入，以批次内点号对表示
func (uc *UserController) InSurveyBreakline(c *gin.Context) {
	var jsonData BreaklineUpload
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	DB := models.DB
	var header models.SurveyBatch
	if DB.Where("bsm = ?", jsonData.BSM).First(&header).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "批次不存在"})
		return
	}

	var points []models.SurveyPoint
	DB.Where("bsm = ?", jsonData.BSM).Find(&points)
	pidSet := make(map[int]bool, len(points))
	for _, p := range points {
		pidSet[p.PID] = true
	}

	saved := 0
	for _, bl := range jsonData.Lines {
		if !pidSet[bl[0]] || !pidSet[bl[1]] || bl[0] == bl[1] {
			continue
		}
		var count int64
		DB.Model(&models.SurveyBreakline{}).
			Where("bsm = ? AND start_pid = ? AND end_pid = ?", jsonData.BSM, bl[0], bl[1]).Count(&count)
		if count > 0 {
			continue
		}
		DB.Create(&models.SurveyBreakline{BSM: jsonData.BSM, StartPID: bl[0], EndPID: bl[1]})
		saved++
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

// 删除批次及其点位、断裂线
func (uc *UserController) DelSurveyBatch(c *gin.Context) {
	bsm := c.Query("bsm")
	DB := models.DB
	var header models.SurveyBatch
	if DB.Where("bsm = ?", bsm).First(&header).Error != nil {
		c.JSON(http.StatusNotFound, "Record not found")
		return
	}
	DB.Where("bsm = ?", bsm).Delete(&models.SurveyPoint{})
	DB.Where("bsm = ?", bsm).Delete(&models.SurveyBreakline{})
	DB.Where("bsm = ?", bsm).Delete(&models.SurveyBatch{})
	c.JSON(http.StatusOK, "OK")
}

// loadSurveyPoints 载入批次点位与断裂线下标对，供三角剖分使用
func loadSurveyPoints(bsm string) ([]Tin.Point3D, [][2]int, error) {
	DB := models.DB
	var rows []models.SurveyPoint
	DB.Where("bsm = ?", bsm).Order("pid").Find(&rows)
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("批次不存在或没有点位: %s", bsm)
	}

	points := make([]Tin.Point3D, 0, len(rows))
	pidToIdx := make(map[int]int, len(rows))
	for i, r := range rows {
		pidToIdx[r.PID] = i
		points = append(points, Tin.Point3D{X: r.X, Y: r.Y, Z: r.Z, ID: r.PID})
	}

	var lines []models.SurveyBreakline
	DB.Where("bsm = ?", bsm).Find(&lines)
	var constraints [][2]int
	for _, l := range lines {
		i0, ok0 := pidToIdx[l.StartPID]
		i1, ok1 := pidToIdx[l.EndPID]
		if ok0 && ok1 {
			constraints = append(constraints, [2]int{i0, i1})
		}
	}
	return points, constraints, nil
}
