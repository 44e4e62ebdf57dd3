package chat

import (
	"time"

	"github.com/google/uuid"
)

// Tree is a root container for a forest of related messages. Title is
// optional; untitled trees sort last in listings.
type Tree struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title *string   `gorm:"column:title;size:255" json:"title,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Tree) TableName() string { return "tree" }
