package files

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusUploading = "uploading"
	StatusReady     = "ready"
	StatusAttached  = "attached"
	StatusDeleted   = "deleted"
)

// Attachment is a file asset owned by an uploader and, once attached, linked
// to exactly one message. Deletion is soft: status flips to "deleted",
// DeletedAt is set, and the blobs are scheduled for removal from object
// storage.
type Attachment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TreeID    *uuid.UUID `gorm:"type:uuid;index" json:"tree_id,omitempty"`
	MessageID *uuid.UUID `gorm:"type:uuid;index" json:"message_id,omitempty"`

	UploaderID  string `gorm:"column:uploader_id;size:128;not null;index" json:"uploader_id"`
	Filename    string `gorm:"column:filename;size:255;not null" json:"filename"`
	ContentType string `gorm:"column:content_type;size:128;not null" json:"content_type"`
	Size        int64  `gorm:"column:size;not null" json:"size"`

	StorageKey   string `gorm:"column:storage_key;not null" json:"-"`
	ThumbnailKey string `gorm:"column:thumbnail_key" json:"-"`

	Status   string         `gorm:"column:status;size:16;not null;default:'pending';index" json:"status"`
	Checksum string         `gorm:"column:checksum" json:"checksum,omitempty"`
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	UploadExpiresAt *time.Time `gorm:"column:upload_expires_at" json:"upload_expires_at,omitempty"`
	AttachedAt      *time.Time `gorm:"column:attached_at" json:"attached_at,omitempty"`
	DeletedAt       *time.Time `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Attachment) TableName() string { return "file_asset" }

// Attachable reports whether the attachment may be linked to a message.
func (a *Attachment) Attachable() bool { return a.Status == StatusReady }
