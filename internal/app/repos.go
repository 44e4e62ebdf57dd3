package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/treechat-backend/internal/data/repos"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type Repos struct {
	Tree       repos.TreeRepo
	Message    repos.MessageRepo
	Attachment repos.AttachmentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tree:       repos.NewTreeRepo(db, log),
		Message:    repos.NewMessageRepo(db, log),
		Attachment: repos.NewAttachmentRepo(db, log),
	}
}
