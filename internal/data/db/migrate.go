package db

import (
	"fmt"

	types "github.com/yungbote/treechat-backend/internal/domain"
	"gorm.io/gorm"
)

// AutoMigrateAll creates the schema on any GORM dialect. Postgres-specific
// indexes live in EnsureTreeIndexes.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Tree{},
		&types.Message{},
		&types.Attachment{},
	)
}

func EnsureTreeIndexes(db *gorm.DB) error {
	// Path walks and sibling listings resolve by parent.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_message_tree_parent
		ON message (tree_id, parent_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_message_tree_parent: %w", err)
	}

	// Deterministic sibling ordering.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_message_tree_created
		ON message (tree_id, created_at, id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_message_tree_created: %w", err)
	}

	// Quota accounting scans active files per uploader.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_file_asset_uploader_active
		ON file_asset (uploader_id, status)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_file_asset_uploader_active: %w", err)
	}

	// Attachment cascades resolve by message.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_file_asset_message
		ON file_asset (message_id)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_file_asset_message: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureTreeIndexes(s.db); err != nil {
		s.log.Error("Tree index migration failed", "error", err)
		return err
	}
	return nil
}
