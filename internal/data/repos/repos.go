package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/treechat-backend/internal/data/repos/chat"
	"github.com/yungbote/treechat-backend/internal/data/repos/files"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type TreeRepo = chat.TreeRepo
type MessageRepo = chat.MessageRepo
type AttachmentRepo = files.AttachmentRepo

func NewTreeRepo(db *gorm.DB, baseLog *logger.Logger) TreeRepo {
	return chat.NewTreeRepo(db, baseLog)
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}

func NewAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) AttachmentRepo {
	return files.NewAttachmentRepo(db, baseLog)
}
