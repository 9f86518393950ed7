package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/response"
)

type RouterDeps struct {
	Stories *StoryHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", health)

	api.POST("/stories", deps.Stories.Create)
	api.GET("/stories", deps.Stories.List)
	api.POST("/stories/upload", deps.Stories.Upload)
	api.PUT("/stories/:id", deps.Stories.Update)
	api.DELETE("/stories/:id", deps.Stories.Delete)
	api.POST("/stories/:id/ask", deps.Stories.Ask)
	api.GET("/stories/:id/paragraphs", deps.Stories.Paragraphs)
}

func health(c *gin.Context) {
	response.Success(c, map[string]string{"status": "ok"})
}
