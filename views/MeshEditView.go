package views

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/methods"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/GrainArc/SurveyTIN/services"
	"github.com/gin-gonic/gin"
)

type SessionRequest struct {
	BSM string `json:"bsm" binding:"required"`
}

// 开启网格编辑会话
func (uc *UserController) OpenMeshSession(c *gin.Context) {
	var jsonData SessionRequest
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	session, err := services.Sessions.OpenSession(models.DB, jsonData.BSM)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var stats Tin.MeshStats
	session.WithMesh(func(m *Tin.TinMesh) {
		stats = m.GetMeshStats()
	})
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"bsm":        session.TinBSM,
		"stats":      stats,
	})
}

// 关闭会话，未保存的编辑随之丢弃
func (uc *UserController) CloseMeshSession(c *gin.Context) {
	sessionID := c.Query("session_id")
	if !services.Sessions.CloseSession(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// 保存会话，网格写回成果表
func (uc *UserController) SaveMeshSession(c *gin.Context) {
	sessionID := c.Query("session_id")
	if err := services.Sessions.SaveSession(models.DB, sessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, "OK")
}

// 会话当前网格获取
func (uc *UserController) ShowSessionMesh(c *gin.Context) {
	sessionID := c.Query("session_id")
	session, exists := services.Sessions.GetSession(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
		return
	}
	var response gin.H
	session.WithMesh(func(m *Tin.TinMesh) {
		response = gin.H{
			"mesh":       methods.TinToFeatureCollection(m),
			"breaklines": methods.BreaklinesToFeatureCollection(m),
			"stats":      m.GetMeshStats(),
			"can_undo":   m.CanUndo(),
			"can_redo":   m.CanRedo(),
		}
	})
	c.JSON(http.StatusOK, response)
}

// 编辑操作请求，元素可用索引指定，也可用坐标加容差拾取
type MeshEditRequest struct {
	SessionID string   `json:"session_id" binding:"required"`
	Op        string   `json:"op" binding:"required"`
	MAC       string   `json:"mac"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
	V         *int32   `json:"v"`
	V0        *int32   `json:"v0"`
	V1        *int32   `json:"v1"`
	T         *int32   `json:"t"`
	Locked    *bool    `json:"locked"`
	Tolerance float64  `json:"tolerance"`
}

func (r *MeshEditRequest) pickVertex(m *Tin.TinMesh) int32 {
	if r.V != nil {
		return *r.V
	}
	if r.X != nil && r.Y != nil && r.Tolerance > 0 {
		return m.FindVertexAt(*r.X, *r.Y, r.Tolerance)
	}
	return -1
}

func (r *MeshEditRequest) pickTriangle(m *Tin.TinMesh) int32 {
	if r.T != nil {
		return *r.T
	}
	if r.X != nil && r.Y != nil {
		return m.FindTriangleAt(*r.X, *r.Y)
	}
	return -1
}

func (r *MeshEditRequest) pickEdge(m *Tin.TinMesh) (int32, int32, bool) {
	if r.V0 != nil && r.V1 != nil {
		return *r.V0, *r.V1, true
	}
	if r.X != nil && r.Y != nil && r.Tolerance > 0 {
		if key, ok := m.FindEdgeAt(*r.X, *r.Y, r.Tolerance); ok {
			return key.A, key.B, true
		}
	}
	return -1, -1, false
}

// EditMesh 网格编辑统一入口
// op取值：insert_point / delete_point / delete_triangle / swap_edge /
// add_breakline / flatten_triangle / modify_z / lock_triangle
func (uc *UserController) EditMesh(c *gin.Context) {
	var jsonData MeshEditRequest
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	session, exists := services.Sessions.GetSession(jsonData.SessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
		return
	}

	ok := false
	extra := gin.H{}
	var stats Tin.MeshStats
	session.WithMesh(func(m *Tin.TinMesh) {
		switch jsonData.Op {
		case "insert_point":
			if jsonData.X != nil && jsonData.Y != nil && jsonData.Z != nil {
				var v int32
				v, ok = m.InsertPoint(*jsonData.X, *jsonData.Y, *jsonData.Z)
				extra["v"] = v
			}
		case "delete_point":
			if v := jsonData.pickVertex(m); v >= 0 {
				ok = m.DeletePoint(v)
			}
		case "delete_triangle":
			if t := jsonData.pickTriangle(m); t >= 0 {
				ok = m.DeleteTriangle(t)
			}
		case "swap_edge":
			if v0, v1, found := jsonData.pickEdge(m); found {
				ok = m.SwapEdge(v0, v1)
			}
		case "add_breakline":
			if jsonData.V0 != nil && jsonData.V1 != nil {
				ok = m.AddBreakline(*jsonData.V0, *jsonData.V1)
			}
		case "flatten_triangle":
			if t := jsonData.pickTriangle(m); t >= 0 {
				ok = m.FlattenTriangle(t)
			}
		case "modify_z":
			if jsonData.Z != nil {
				if v := jsonData.pickVertex(m); v >= 0 {
					ok = m.ModifyVertexZ(v, *jsonData.Z)
				}
			}
		case "lock_triangle":
			if jsonData.Locked != nil {
				if t := jsonData.pickTriangle(m); t >= 0 {
					ok = m.LockTriangle(t, *jsonData.Locked)
				}
			}
		}
		stats = m.GetMeshStats()
	})

	if ok {
		params, _ := json.Marshal(jsonData)
		log := models.TinEditLog{
			TinBSM: session.TinBSM,
			MAC:    jsonData.MAC,
			Op:     jsonData.Op,
			Params: params,
			Date:   time.Now().Format("2006-01-02 15:04:05"),
		}
		models.DB.Create(&log)
	}

	response := gin.H{"ok": ok, "stats": stats}
	for k, v := range extra {
		response[k] = v
	}
	c.JSON(http.StatusOK, response)
}

// 撤销一步编辑
func (uc *UserController) UndoMeshEdit(c *gin.Context) {
	uc.undoRedo(c, true)
}

// 重做一步编辑
func (uc *UserController) RedoMeshEdit(c *gin.Context) {
	uc.undoRedo(c, false)
}

func (uc *UserController) undoRedo(c *gin.Context, undo bool) {
	sessionID := c.Query("session_id")
	session, exists := services.Sessions.GetSession(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
		return
	}
	ok := false
	var stats Tin.MeshStats
	session.WithMesh(func(m *Tin.TinMesh) {
		if undo {
			ok = m.UndoEdit()
		} else {
			ok = m.RedoEdit()
		}
		stats = m.GetMeshStats()
	})
	c.JSON(http.StatusOK, gin.H{"ok": ok, "stats": stats})
}

// 交换预览，返回翻边后将要连接的两个顶点
func (uc *UserController) GetSwapPreview(c *gin.Context) {
	var jsonData MeshEditRequest
	if err := c.ShouldBindJSON(&jsonData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}
	session, exists := services.Sessions.GetSession(jsonData.SessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
		return
	}
	canSwap := false
	var a, b int32
	session.WithMesh(func(m *Tin.TinMesh) {
		if v0, v1, found := jsonData.pickEdge(m); found {
			a, b, canSwap = m.GetSwapPreview(v0, v1)
		}
	})
	if !canSwap {
		c.JSON(http.StatusOK, gin.H{"can_swap": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"can_swap": true, "v0": a, "v1": b})
}

// 会话网格统计
func (uc *UserController) ShowMeshStats(c *gin.Context) {
	sessionID := c.Query("session_id")
	session, exists := services.Sessions.GetSession(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "编辑会话不存在"})
		return
	}
	var stats Tin.MeshStats
	canUndo, canRedo := false, false
	session.WithMesh(func(m *Tin.TinMesh) {
		stats = m.GetMeshStats()
		canUndo = m.CanUndo()
		canRedo = m.CanRedo()
	})
	c.JSON(http.StatusOK, gin.H{"stats": stats, "can_undo": canUndo, "can_redo": canRedo})
}

// 编辑流水查询
func (uc *UserController) ShowEditLogs(c *gin.Context) {
	bsm := c.Query("bsm")
	var mytable []models.TinEditLog
	models.DB.Where("tin_bsm = ?", bsm).Order("id desc").Find(&mytable)
	if len(mytable) == 0 {
		c.JSON(200, []interface{}{})
		return
	}
	data := methods.LowerJSONTransform(mytable)
	c.JSON(http.StatusOK, data)
}
