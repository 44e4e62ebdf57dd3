package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/treechat-backend/internal/domain"
)

func SeedTree(tb testing.TB, ctx context.Context, tx *gorm.DB, title *string) *types.Tree {
	tb.Helper()
	t := &types.Tree{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tree: %v", err)
	}
	return t
}

// SeedMessage assigns an explicit CreatedAt so sibling ordering is
// deterministic in tests.
func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, treeID uuid.UUID, parentID *uuid.UUID, role, content string, at time.Time) *types.Message {
	tb.Helper()
	m := &types.Message{
		ID:        uuid.New(),
		TreeID:    treeID,
		ParentID:  parentID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedAttachment(tb testing.TB, ctx context.Context, tx *gorm.DB, uploaderID string, size int64, status string) *types.Attachment {
	tb.Helper()
	id := uuid.New()
	a := &types.Attachment{
		ID:          id,
		UploaderID:  uploaderID,
		Filename:    "file.pdf",
		ContentType: "application/pdf",
		Size:        size,
		StorageKey:  "uploads/" + uploaderID + "/" + id.String() + "/file.pdf",
		Status:      status,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed attachment: %v", err)
	}
	return a
}
