package chat

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Message, error)
	ListByTree(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error)
	ListByParent(dbc dbctx.Context, treeID uuid.UUID, parentID *uuid.UUID) ([]*types.Message, error)
	ListRoots(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error)
	UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata datatypes.JSON) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	DeleteByTree(dbc dbctx.Context, treeID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error) {
	if len(rows) == 0 {
		return []*types.Message{}, nil
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

func (r *messageRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Message, error) {
	if len(ids) == 0 {
		return []*types.Message{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Message
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListByTree(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Message
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("tree_id = ?", treeID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListByParent(dbc dbctx.Context, treeID uuid.UUID, parentID *uuid.UUID) ([]*types.Message, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("tree_id = ?", treeID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	var out []*types.Message
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListRoots(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error) {
	return r.ListByParent(dbc, treeID, nil)
}

func (r *messageRepo) UpdateMetadata(dbc dbctx.Context, id uuid.UUID, metadata datatypes.JSON) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("id = ?", id).
		Update("metadata", metadata).Error
}

// DeleteByIDs hard-deletes messages. Callers resolve the subtree first; the
// rows carry no soft-delete column.
func (r *messageRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Message{})
	return res.RowsAffected, res.Error
}

func (r *messageRepo) DeleteByTree(dbc dbctx.Context, treeID uuid.UUID) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("tree_id = ?", treeID).
		Delete(&types.Message{})
	return res.RowsAffected, res.Error
}
