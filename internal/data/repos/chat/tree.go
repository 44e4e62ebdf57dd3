package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

type TreeRepo interface {
	Create(dbc dbctx.Context, rows []*types.Tree) ([]*types.Tree, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Tree, error)
	List(dbc dbctx.Context, limit int) ([]*types.Tree, error)
	UpdateTitle(dbc dbctx.Context, id uuid.UUID, title *string) error
	Touch(dbc dbctx.Context, id uuid.UUID) error
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type treeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTreeRepo(db *gorm.DB, log *logger.Logger) TreeRepo {
	return &treeRepo{db: db, log: log.With("repo", "TreeRepo")}
}

func (r *treeRepo) Create(dbc dbctx.Context, rows []*types.Tree) ([]*types.Tree, error) {
	if len(rows) == 0 {
		return []*types.Tree{}, nil
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

func (r *treeRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Tree, error) {
	if len(ids) == 0 {
		return []*types.Tree{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Tree
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Tree{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// List returns trees ordered by title ascending with untitled trees last.
// The (title IS NULL) sort key works on both Postgres and SQLite.
func (r *treeRepo) List(dbc dbctx.Context, limit int) ([]*types.Tree, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.Tree{}).
		Order("(title IS NULL), title ASC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Tree
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *treeRepo) UpdateTitle(dbc dbctx.Context, id uuid.UUID, title *string) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Tree{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *treeRepo) Touch(dbc dbctx.Context, id uuid.UUID) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Tree{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *treeRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Tree{})
	return res.RowsAffected, res.Error
}
