package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/GrainArc/SurveyTIN/config"
	"github.com/GrainArc/SurveyTIN/models"
	"github.com/GrainArc/SurveyTIN/routers"
	"github.com/GrainArc/SurveyTIN/services"
	"github.com/gin-gonic/gin"
)

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func main() {
	os.MkdirAll(config.Download, os.ModePerm)
	models.InitDB()

	r := gin.Default()
	r.Use(Cors())
	r.Static("/download", config.Download)
	routers.TinRouters(r)

	// 定时清理空闲编辑会话
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		for range ticker.C {
			if n := services.Sessions.SweepIdleSessions(); n > 0 {
				fmt.Printf("清理空闲编辑会话: %d\n", n)
			}
		}
	}()

	fmt.Println("服务启动:", config.MainRouter)
	r.Run(config.MainRouter)
}
