package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/treechat-backend/internal/data/db"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
	"github.com/yungbote/treechat-backend/internal/services"
)

type Services struct {
	TxRunner  db.TxRunner
	Traversal services.TraversalService
	File      services.FileService
	Tree      services.TreeService
	Message   services.MessageService
	Fork      services.ForkService
	Graph     services.GraphService
}

func wireServices(gdb *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")

	txRunner := db.NewGormTxRunner(gdb)
	traversal := services.NewTraversalService(log, r.Message)
	file := services.NewFileService(log, r.Attachment, c.Store, cfg.FileLimits)
	tree := services.NewTreeService(log, txRunner, r.Tree, r.Message, file)
	message := services.NewMessageService(log, txRunner, r.Tree, r.Message, traversal, file, c.Provider)
	fork := services.NewForkService(log, txRunner, r.Tree, r.Message, traversal)
	graph := services.NewGraphService(log, r.Message)

	return Services{
		TxRunner:  txRunner,
		Traversal: traversal,
		File:      file,
		Tree:      tree,
		Message:   message,
		Fork:      fork,
		Graph:     graph,
	}
}
