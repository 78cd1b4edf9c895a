package routers

import (
	"github.com/GrainArc/SurveyTIN/views"
	"github.com/gin-gonic/gin"
)

func TinRouters(r *gin.Engine) {
	UserController := &views.UserController{}
	mapRouter := r.Group("/tin")
	{
		// 测量点批次
		mapRouter.POST("/Survey/InSurveyBatch", UserController.InSurveyBatch)
		mapRouter.POST("/Survey/InSurveyFile", UserController.InSurveyFile)
		mapRouter.GET("/Survey/ShowSurveyBatch", UserController.ShowSurveyBatch)
		mapRouter.GET("/Survey/ShowSurveyPoints", UserController.ShowSurveyPoints)
		mapRouter.GET("/Survey/ShowSurveyBreaklines", UserController.ShowSurveyBreaklines)
		mapRouter.POST("/Survey/InSurveyBreakline", UserController.InSurveyBreakline)
		mapRouter.GET("/Survey/DelSurveyBatch", UserController.DelSurveyBatch)
	}
	{
		// POST用于提交三角剖分任务配置
		mapRouter.POST("/Triangulate/start", UserController.StartTriangulate)
		// GET用于WebSocket连接
		mapRouter.GET("/Triangulate/ws/:taskId", UserController.TriangulateWebSocket)
		// GET用于查询任务状态（可选）
		mapRouter.GET("/Triangulate/status/:taskId", UserController.GetTaskStatus)
	}
	{
		// TIN成果管理
		mapRouter.GET("/ShowTinRecords", UserController.ShowTinRecords)
		mapRouter.GET("/ShowTinMesh", UserController.ShowTinMesh)
		mapRouter.GET("/DelTinRecord", UserController.DelTinRecord)
		mapRouter.GET("/DownloadTin", UserController.DownloadTin)
	}
	{
		// 网格编辑会话
		mapRouter.POST("/Session/Open", UserController.OpenMeshSession)
		mapRouter.GET("/Session/Close", UserController.CloseMeshSession)
		mapRouter.GET("/Session/Save", UserController.SaveMeshSession)
		mapRouter.GET("/Session/ShowMesh", UserController.ShowSessionMesh)
		mapRouter.GET("/Session/ShowStats", UserController.ShowMeshStats)
		mapRouter.POST("/Session/Edit", UserController.EditMesh)
		mapRouter.POST("/Session/SwapPreview", UserController.GetSwapPreview)
		mapRouter.GET("/Session/Undo", UserController.UndoMeshEdit)
		mapRouter.GET("/Session/Redo", UserController.RedoMeshEdit)
		mapRouter.GET("/Session/ShowEditLogs", UserController.ShowEditLogs)
	}
	{
		// 等值线
		mapRouter.POST("/Contour/MakeContours", UserController.MakeContours)
		mapRouter.GET("/Contour/ShowContourRecords", UserController.ShowContourRecords)
		mapRouter.GET("/Contour/ShowContour", UserController.ShowContour)
		mapRouter.GET("/Contour/DelContour", UserController.DelContour)
		mapRouter.GET("/Contour/DownloadContour", UserController.DownloadContour)
	}
	{
		// 高程与填挖方
		mapRouter.POST("/GetExcavationFillVolume", UserController.GetExcavationFillVolume)
		mapRouter.POST("/GetElevationList", UserController.GetElevationList)
		mapRouter.POST("/GetHeightFromTin", UserController.GetHeightFromTin)
	}
}
