package app

import (
	"github.com/gin-gonic/gin"

	httpserver "github.com/yungbote/treechat-backend/internal/http"
	httpH "github.com/yungbote/treechat-backend/internal/http/handlers"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type Handlers struct {
	Tree    *httpH.TreeHandler
	Message *httpH.MessageHandler
	File    *httpH.FileHandler
	Health  *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Tree:    httpH.NewTreeHandler(s.Tree, s.Message, s.Graph),
		Message: httpH.NewMessageHandler(s.Message, s.Fork),
		File:    httpH.NewFileHandler(s.File),
		Health:  httpH.NewHealthHandler(),
	}
}

func wireRouter(log *logger.Logger, h Handlers) *gin.Engine {
	log.Info("Wiring router...")
	return httpserver.NewRouter(httpserver.RouterConfig{
		Log:            log,
		TreeHandler:    h.Tree,
		MessageHandler: h.Message,
		FileHandler:    h.File,
		HealthHandler:  h.Health,
	})
}
