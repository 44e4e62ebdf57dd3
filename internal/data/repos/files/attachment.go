package files

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type AttachmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Attachment) ([]*types.Attachment, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Attachment, error)
	ListByUploader(dbc dbctx.Context, uploaderID string, limit int) ([]*types.Attachment, error)
	ListByTree(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Attachment, error)
	ListByMessageIDs(dbc dbctx.Context, messageIDs []uuid.UUID) ([]*types.Attachment, error)
	CountActiveByUploader(dbc dbctx.Context, uploaderID string) (int64, error)
	SumActiveBytesByUploader(dbc dbctx.Context, uploaderID string) (int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type attachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttachmentRepo(db *gorm.DB, log *logger.Logger) AttachmentRepo {
	return &attachmentRepo{db: db, log: log.With("repo", "AttachmentRepo")}
}

func (r *attachmentRepo) Create(dbc dbctx.Context, rows []*types.Attachment) ([]*types.Attachment, error) {
	if len(rows) == 0 {
		return []*types.Attachment{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *attachmentRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Attachment, error) {
	if len(ids) == 0 {
		return []*types.Attachment{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Attachment
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) ListByUploader(dbc dbctx.Context, uploaderID string, limit int) ([]*types.Attachment, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("uploader_id = ? AND deleted_at IS NULL", uploaderID).
		Order("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Attachment
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) ListByTree(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Attachment, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Attachment
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("tree_id = ? AND deleted_at IS NULL", treeID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) ListByMessageIDs(dbc dbctx.Context, messageIDs []uuid.UUID) ([]*types.Attachment, error) {
	if len(messageIDs) == 0 {
		return []*types.Attachment{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Attachment
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("message_id IN ? AND deleted_at IS NULL", messageIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Active means any non-deleted row, including pending reservations, so quota
// checks cover uploads still in flight.
func (r *attachmentRepo) CountActiveByUploader(dbc dbctx.Context, uploaderID string) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("uploader_id = ? AND deleted_at IS NULL", uploaderID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *attachmentRepo) SumActiveBytesByUploader(dbc dbctx.Context, uploaderID string) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var total *int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Select("SUM(size)").
		Where("uploader_id = ? AND deleted_at IS NULL", uploaderID).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *attachmentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	updates["updated_at"] = time.Now().UTC()
	return txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *attachmentRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	res := txx.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Updates(map[string]interface{}{
			"status":     types.FileStatusDeleted,
			"deleted_at": now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
