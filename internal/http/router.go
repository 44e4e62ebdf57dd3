package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/treechat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/treechat-backend/internal/http/middleware"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	TreeHandler    *httpH.TreeHandler
	MessageHandler *httpH.MessageHandler
	FileHandler    *httpH.FileHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireIdentity())
	{
		// Trees
		if cfg.TreeHandler != nil {
			api.POST("/trees", cfg.TreeHandler.CreateTree)
			api.GET("/trees", cfg.TreeHandler.ListTrees)
			api.PATCH("/trees/:id", cfg.TreeHandler.RenameTree)
			api.DELETE("/trees/:id", cfg.TreeHandler.DeleteTree)
			api.GET("/trees/:id/messages", cfg.TreeHandler.ListTreeMessages)
			api.GET("/trees/:id/graph", cfg.TreeHandler.GetGraph)
		}

		// Messages
		if cfg.MessageHandler != nil {
			api.POST("/messages", cfg.MessageHandler.AppendTurn)
			api.POST("/messages/stream", cfg.MessageHandler.AppendTurnStream)
			api.DELETE("/messages/:id", cfg.MessageHandler.DeleteSubtree)
			api.GET("/messages/path/:id", cfg.MessageHandler.GetPath)
			api.POST("/messages/fork/:id", cfg.MessageHandler.Fork)
		}

		// Files
		if cfg.FileHandler != nil {
			api.POST("/files/sign", cfg.FileHandler.Sign)
			api.POST("/files/:id/complete", cfg.FileHandler.Complete)
			api.GET("/files", cfg.FileHandler.List)
			api.GET("/files/:id", cfg.FileHandler.Get)
			api.DELETE("/files/:id", cfg.FileHandler.Delete)
			api.GET("/files/:id/download", cfg.FileHandler.DownloadURL)
			api.GET("/files/:id/thumbnail", cfg.FileHandler.ThumbnailURL)
		}
	}

	return r
}
