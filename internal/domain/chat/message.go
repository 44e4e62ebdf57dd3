package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation: a node in its tree. Parent/child
// relationships are id references resolved by querying on parent_id; a
// message never owns its children. A nil ParentID makes the message a root
// of its tree.
//
// Messages are immutable after creation except for Metadata, which records
// attachment linkage.
type Message struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TreeID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"tree_id"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Role     string         `gorm:"column:role;size:16;not null" json:"role"`
	Content  string         `gorm:"column:content;type:text;not null" json:"content"`
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	// CreatedAt is monotonic per insertion order and is the tie-break for
	// sibling ordering and root selection.
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string { return "message" }

// IsRoot reports whether the message is a root of its tree.
func (m *Message) IsRoot() bool { return m.ParentID == nil }
