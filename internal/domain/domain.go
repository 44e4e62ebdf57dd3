package domain

import (
	"github.com/yungbote/treechat-backend/internal/domain/chat"
	"github.com/yungbote/treechat-backend/internal/domain/files"
)

const (
	RoleSystem    = chat.RoleSystem
	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant

	FileStatusPending   = files.StatusPending
	FileStatusUploading = files.StatusUploading
	FileStatusReady     = files.StatusReady
	FileStatusAttached  = files.StatusAttached
	FileStatusDeleted   = files.StatusDeleted
)

type (
	Tree       = chat.Tree
	Message    = chat.Message
	Attachment = files.Attachment
)
