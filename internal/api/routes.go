package api

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:embed openapi.json
var openAPIDoc []byte

// RegisterRoutes 注册控制与查询路由
func RegisterRoutes(r gin.IRouter, h *Handler) {
	api := r.Group("/api")
	api.POST("/control/relay", h.ControlRelay)
	api.GET("/devices", h.ListDevices)
	api.GET("/devices/:dtuNo", h.GetDevice)
}

// RegisterSwagger 挂载 Swagger UI，文档来自内置 openapi.json
func RegisterSwagger(r gin.IRouter) {
	ui := ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json"))
	// 通配路由与静态路由不能共存，doc.json 在同一处理器内分流
	r.GET("/swagger/*any", func(c *gin.Context) {
		if c.Param("any") == "/doc.json" {
			c.Data(http.StatusOK, "application/json; charset=utf-8", openAPIDoc)
			return
		}
		ui(c)
	})
}
