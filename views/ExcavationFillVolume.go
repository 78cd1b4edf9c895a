package views

import (
	"math"
	"net/http"
	"sync"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/GrainArc/SurveyTIN/services"
	"github.com/gin-gonic/gin"
)

// 填挖方接口

type FillData struct {
	BSM   string  `json:"bsm" binding:"required"` // TIN成果标识
	Datum float64 `json:"datum"`                  // 设计基准面高程
}

func (uc *UserController) GetExcavationFillVolume(c *gin.Context) {
	var jsonData FillData
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	type efData struct {
		Excavation float64
		Fill       float64
	}

	mesh, _, err := services.LoadMesh(models.DB, jsonData.BSM)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	cut, fill := mesh.ComputeVolume(jsonData.Datum)

	var result efData
	result.Excavation = math.Abs(cut)
	result.Fill = math.Abs(fill)
	c.JSON(http.StatusOK, result)
}

// MakeZList 批量内插高程，固定20个worker并保持输入顺序
func MakeZList(coords [][]float64, m *Tin.TinMesh) [][]float64 {
	var coords2 = make([][]float64, len(coords))

	type task struct {
		index int
		x     float64
		y     float64
	}

	type result struct {
		index int
		z     float64
	}

	tasks := make(chan task, len(coords))
	results := make(chan result, len(coords))

	// 创建固定数量的worker
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 每个worker持有自己的游走游标，避免竞争共享缓存
			hint := int32(-1)
			for t := range tasks {
				z, at, err := m.GetElevationAtFrom(t.x, t.y, hint)
				if err != nil {
					z = math.NaN()
				}
				hint = at
				results <- result{t.index, z}
			}
		}()
	}

	// 发送任务
	go func() {
		for i, item := range coords {
			tasks <- task{index: i, x: item[0], y: item[1]}
		}
		close(tasks)
	}()

	// 等待所有worker完成并关闭结果channel
	go func() {
		wg.Wait()
		close(results)
	}()

	// 收集结果（自动保持原始顺序）
	for res := range results {
		coords2[res.index] = []float64{coords[res.index][0], coords[res.index][1], res.z}
	}
	return coords2
}

type ElevationQuery struct {
	BSM       string      `json:"bsm"`
	SessionID string      `json:"session_id"`
	Points    [][]float64 `json:"points" binding:"required"`
}

// 批量高程查询，网格外的点返回null
// 可查成果表中的TIN，也可查编辑会话中的实时网格
func (uc *UserController) GetElevationList(c *gin.Context) {
	var jsonData ElevationQuery
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	for i, p := range jsonData.Points {
		if len(p) < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "坐标维度不足", "index": i})
			return
		}
	}

	var coords2 [][]float64
	if jsonData.SessionID != "" {
		session, exists := services.Sessions.GetSession(jsonData.SessionID)
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
			return
		}
		session.WithMesh(func(m *Tin.TinMesh) {
			coords2 = MakeZList(jsonData.Points, m)
		})
	} else {
		mesh, _, err := services.LoadMesh(models.DB, jsonData.BSM)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		coords2 = MakeZList(jsonData.Points, mesh)
	}

	// NaN不能进JSON，网格外的点置null
	out := make([]interface{}, len(coords2))
	for i, item := range coords2 {
		if math.IsNaN(item[2]) {
			out[i] = nil
		} else {
			out[i] = item[2]
		}
	}
	c.JSON(http.StatusOK, gin.H{"elevations": out})
}

// 坐标用指针区分缺省和合法的0值
type Point struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

// 单点高程查询
func (uc *UserController) GetHeightFromTin(c *gin.Context) {
	bsm := c.Query("bsm")
	var jsonData Point
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"message": err.Error(),
		})
		return
	}

	mesh, _, err := services.LoadMesh(models.DB, bsm)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h, err := mesh.GetElevationAt(*jsonData.X, *jsonData.Y)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"Height": -999,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"Height": h,
	})
}
