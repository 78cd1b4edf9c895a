package views

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/GrainArc/SurveyTIN/Tin"
	"github.com/GrainArc/SurveyTIN/methods"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/GrainArc/SurveyTIN/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 任务状态枚举
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// 请求参数结构体
type TinRequest struct {
	BSM  string `json:"bsm" binding:"required"` // 源测量批次
	Name string `json:"name"`
}

// 任务信息结构体
type TinTaskInfo struct {
	ID      string     `json:"id"`
	Status  TaskStatus `json:"status"`
	Request TinRequest `json:"tin_request"`

	CreatedAt time.Time          `json:"created_at"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
	Error     string             `json:"error,omitempty"`
	ResultBSM string             `json:"result_bsm,omitempty"`
	Context   context.Context    `json:"-"`
	Cancel    context.CancelFunc `json:"-"`
	mutex     sync.RWMutex       `json:"-"`
}

// 全局任务管理器
type TaskManager struct {
	tasks map[string]*TinTaskInfo
	mutex sync.RWMutex
}

var taskManager = &TaskManager{
	tasks: make(map[string]*TinTaskInfo),
}

// 添加任务
func (tm *TaskManager) AddTask(task *TinTaskInfo) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	tm.tasks[task.ID] = task
}

// 获取任务
func (tm *TaskManager) GetTask(taskID string) (*TinTaskInfo, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	task, exists := tm.tasks[taskID]
	return task, exists
}

// 删除任务（可选，用于清理）
func (tm *TaskManager) RemoveTask(taskID string) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	if task, exists := tm.tasks[taskID]; exists {
		if task.Cancel != nil {
			task.Cancel()
		}
		delete(tm.tasks, taskID)
	}
}

// 更新任务状态
func (task *TinTaskInfo) UpdateStatus(status TaskStatus) {
	task.mutex.Lock()
	defer task.mutex.Unlock()
	task.Status = status
	now := time.Now()

	switch status {
	case TaskStatusRunning:
		task.StartedAt = &now
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		task.EndedAt = &now
	}
}

// WebSocket消息结构体
type ProgressMessage struct {
	Type       string `json:"type"`
	Percentage int    `json:"percentage,omitempty"`
	Message    string `json:"message"`
	BSM        string `json:"bsm,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type ClientMessage struct {
	Action string `json:"action"`
}

// StartTriangulate 创建并初始化三角剖分任务
func (uc *UserController) StartTriangulate(c *gin.Context) {
	var req TinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	var header models.SurveyBatch
	if models.DB.Where("bsm = ?", req.BSM).First(&header).Error != nil {
		c.JSON(404, gin.H{"error": "批次不存在"})
		return
	}
	if req.Name == "" {
		req.Name = header.Name + "_TIN"
	}

	// 创建任务
	taskID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	task := &TinTaskInfo{
		ID:        taskID,
		Status:    TaskStatusPending,
		Request:   req,
		CreatedAt: time.Now(),
		Context:   ctx,
		Cancel:    cancel,
	}

	taskManager.AddTask(task)

	c.JSON(200, gin.H{
		"task_id": taskID,
		"status":  task.Status,
		"message": "任务已创建，请使用WebSocket连接开始执行",
		"ws_url":  fmt.Sprintf("/tin/Triangulate/ws/%s", taskID),
	})
}

// TriangulateWebSocket 处理WebSocket连接并执行三角剖分任务
func (uc *UserController) TriangulateWebSocket(c *gin.Context) {
	taskID := c.Param("taskId")

	task, exists := taskManager.GetTask(taskID)
	if !exists {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	// 检查任务状态
	task.mutex.RLock()
	if task.Status != TaskStatusPending {
		task.mutex.RUnlock()
		c.JSON(400, gin.H{"error": "任务已经开始或已完成"})
		return
	}
	task.mutex.RUnlock()

	// 升级到WebSocket连接
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(500, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer ws.Close()

	task.UpdateStatus(TaskStatusRunning)

	// 用于协调取消操作的通道
	cancelChan := make(chan bool, 1)

	// 启动goroutine监听客户端取消消息
	go func() {
		for {
			var msg ClientMessage
			err := ws.ReadJSON(&msg)
			if err != nil {
				fmt.Printf("WebSocket读取错误: %v\n", err)
				cancelChan <- true
				return
			}

			if msg.Action == "cancel" {
				fmt.Printf("收到任务 %s 的取消请求\n", taskID)
				cancelChan <- true
				task.Cancel()
				return
			}
		}
	}()

	// 进度回调函数
	progressCallback := func(percent float64, stage string) bool {
		select {
		case <-task.Context.Done():
			return false
		default:
		}

		progressMsg := ProgressMessage{
			Type:       "progress",
			Percentage: int(percent),
			Message:    stage,
			Timestamp:  time.Now().UnixMilli(),
		}

		if err := ws.WriteJSON(progressMsg); err != nil {
			fmt.Printf("发送进度消息失败: %v\n", err)
			return false
		}

		return true
	}

	startTime := time.Now()
	req := task.Request

	// 在goroutine中执行三角剖分，以便能够响应取消操作
	resultChan := make(chan *models.TinRecord, 1)
	errorChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errorChan <- fmt.Errorf("内部错误: %v", r)
			}
		}()

		points, constraints, err := loadSurveyPoints(req.BSM)
		if err != nil {
			errorChan <- err
			return
		}

		tin, err := Tin.DelaunayTriangulationWithProgress(points, constraints, progressCallback)
		if err != nil {
			errorChan <- err
			return
		}
		mesh := Tin.BuildMesh(tin)

		tinBSM := uuid.New().String()
		record, err := services.SaveTinRecord(models.DB, tinBSM, req.Name, methods.ConvertToInitials(req.Name), req.BSM, mesh)
		if err != nil {
			errorChan <- err
		} else {
			resultChan <- record
		}
	}()

	// 等待结果或取消信号
	select {
	case <-cancelChan:
		task.UpdateStatus(TaskStatusCancelled)
		cancelMsg := ProgressMessage{
			Type:      "cancelled",
			Message:   fmt.Sprintf("任务 %s 已被用户取消", taskID),
			Timestamp: time.Now().UnixMilli(),
		}
		ws.WriteJSON(cancelMsg)
		return

	case <-task.Context.Done():
		task.UpdateStatus(TaskStatusCancelled)
		cancelMsg := ProgressMessage{
			Type:      "cancelled",
			Message:   fmt.Sprintf("任务 %s 已被取消", taskID),
			Timestamp: time.Now().UnixMilli(),
		}
		ws.WriteJSON(cancelMsg)
		return

	case err := <-errorChan:
		task.UpdateStatus(TaskStatusFailed)
		task.mutex.Lock()
		task.Error = err.Error()
		task.mutex.Unlock()

		errorMsg := ProgressMessage{
			Type:      "error",
			Message:   "三角剖分失败: " + err.Error(),
			Timestamp: time.Now().UnixMilli(),
		}
		ws.WriteJSON(errorMsg)
		return

	case record := <-resultChan:
		// 检查是否在最后时刻被取消
		select {
		case <-task.Context.Done():
			task.UpdateStatus(TaskStatusCancelled)
			cancelMsg := ProgressMessage{
				Type:      "cancelled",
				Message:   fmt.Sprintf("任务 %s 已被用户取消", taskID),
				Timestamp: time.Now().UnixMilli(),
			}
			ws.WriteJSON(cancelMsg)
			return
		default:
		}

		task.mutex.Lock()
		task.ResultBSM = record.BSM
		task.mutex.Unlock()
		task.UpdateStatus(TaskStatusCompleted)

		elapsedTime := time.Since(startTime)
		completionMsg := ProgressMessage{
			Type:       "complete",
			Percentage: 100,
			Message:    fmt.Sprintf("三角剖分完成，耗时: %v，三角形数: %d", elapsedTime, record.TriangleCount),
			BSM:        record.BSM,
			Timestamp:  time.Now().UnixMilli(),
		}
		ws.WriteJSON(completionMsg)
	}
}

// GetTaskStatus 查询任务状态
func (uc *UserController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("taskId")

	task, exists := taskManager.GetTask(taskID)
	if !exists {
		c.JSON(404, gin.H{"error": "任务不存在"})
		return
	}

	task.mutex.RLock()
	defer task.mutex.RUnlock()

	response := gin.H{
		"task_id":    task.ID,
		"status":     task.Status,
		"created_at": task.CreatedAt,
		"started_at": task.StartedAt,
		"ended_at":   task.EndedAt,
	}

	if task.Error != "" {
		response["error"] = task.Error
	}
	if task.ResultBSM != "" {
		response["bsm"] = task.ResultBSM
	}

	c.JSON(200, response)
}

// TIN成果列表，不含网格数据本体
func (uc *UserController) ShowTinRecords(c *gin.Context) {
	var mytable []models.TinRecord
	DB := models.DB
	DB.Select("bsm, name, en, source_bsm, vertex_count, triangle_count, constrained_edge, min_z, max_z, surface_area, date").
		Order("date desc").Find(&mytable)
	if len(mytable) == 0 {
		c.JSON(200, []interface{}{})
		return
	}
	data := methods.LowerJSONTransform(mytable)
	c.JSON(http.StatusOK, data)
}

// TIN成果删除，连带编辑流水和等值线成果
func (uc *UserController) DelTinRecord(c *gin.Context) {
	bsm := c.Query("bsm")
	DB := models.DB
	var record models.TinRecord
	if DB.Where("bsm = ?", bsm).First(&record).Error != nil {
		c.JSON(http.StatusNotFound, "Record not found")
		return
	}
	DB.Where("tin_bsm = ?", bsm).Delete(&models.TinEditLog{})
	DB.Where("tin_bsm = ?", bsm).Delete(&models.ContourRecord{})
	DB.Where("bsm = ?", bsm).Delete(&models.TinRecord{})
	c.JSON(http.StatusOK, "OK")
}

// TIN网格获取，输出三角形面要素与断裂线要素
func (uc *UserController) ShowTinMesh(c *gin.Context) {
	bsm := c.Query("bsm")
	mesh, record, err := services.LoadMesh(models.DB, bsm)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bsm":        record.BSM,
		"name":       record.Name,
		"mesh":       methods.TinToFeatureCollection(mesh),
		"breaklines": methods.BreaklinesToFeatureCollection(mesh),
		"stats":      mesh.GetMeshStats(),
	})
}

// TIN成果导出，format支持dxf/shp/geojson，返回zip
func (uc *UserController) DownloadTin(c *gin.Context) {
	bsm := c.Query("bsm")
	format := c.DefaultQuery("format", "dxf")

	mesh, record, err := services.LoadMesh(models.DB, bsm)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	data, filename, err := services.ExportMesh(mesh, record.Name, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/zip", data)
}
