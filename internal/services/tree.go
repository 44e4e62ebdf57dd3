package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/data/db"
	"github.com/yungbote/treechat-backend/internal/data/repos"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/apierr"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

// SeedRootContent is the content of the system message planted in every new
// tree so the graph view is never empty.
const SeedRootContent = "(root) – start a branch by selecting me or just send a message."

type TreeService interface {
	// CreateTree makes a tree and seeds its system root in one transaction.
	CreateTree(ctx context.Context, title *string) (*types.Tree, *types.Message, error)
	GetTree(dbc dbctx.Context, id uuid.UUID) (*types.Tree, error)
	ListTrees(dbc dbctx.Context, limit int) ([]*types.Tree, error)
	RenameTree(dbc dbctx.Context, id uuid.UUID, title *string) (*types.Tree, error)
	// DeleteTree removes the tree, its messages, and their attachments.
	// Returns the number of deleted messages.
	DeleteTree(ctx context.Context, id uuid.UUID) (int64, error)
}

type treeService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	treeRepo    repos.TreeRepo
	messageRepo repos.MessageRepo
	fileService FileService
}

func NewTreeService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	treeRepo repos.TreeRepo,
	messageRepo repos.MessageRepo,
	fileService FileService,
) TreeService {
	return &treeService{
		log:         baseLog.With("service", "TreeService"),
		txRunner:    txRunner,
		treeRepo:    treeRepo,
		messageRepo: messageRepo,
		fileService: fileService,
	}
}

func (s *treeService) CreateTree(ctx context.Context, title *string) (*types.Tree, *types.Message, error) {
	now := time.Now().UTC()
	tree := &types.Tree{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	root := &types.Message{
		ID:        uuid.New(),
		TreeID:    tree.ID,
		Role:      types.RoleSystem,
		Content:   SeedRootContent,
		CreatedAt: now,
	}

	err := s.txRunner.InTx(ctx, func(dbc dbctx.Context) error {
		if _, err := s.treeRepo.Create(dbc, []*types.Tree{tree}); err != nil {
			return err
		}
		_, err := s.messageRepo.Create(dbc, []*types.Message{root})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("Tree created", "tree_id", tree.ID)
	return tree, root, nil
}

func (s *treeService) GetTree(dbc dbctx.Context, id uuid.UUID) (*types.Tree, error) {
	rows, err := s.treeRepo.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound("tree_not_found", "tree %s not found", id)
	}
	return rows[0], nil
}

func (s *treeService) ListTrees(dbc dbctx.Context, limit int) ([]*types.Tree, error) {
	return s.treeRepo.List(dbc, limit)
}

func (s *treeService) RenameTree(dbc dbctx.Context, id uuid.UUID, title *string) (*types.Tree, error) {
	tree, err := s.GetTree(dbc, id)
	if err != nil {
		return nil, err
	}
	if err := s.treeRepo.UpdateTitle(dbc, id, title); err != nil {
		return nil, err
	}
	tree.Title = title
	return tree, nil
}

func (s *treeService) DeleteTree(ctx context.Context, id uuid.UUID) (int64, error) {
	var (
		deleted  int64
		blobKeys []string
	)
	err := s.txRunner.InTx(ctx, func(dbc dbctx.Context) error {
		affected, err := s.treeRepo.DeleteByID(dbc, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apierr.NotFound("tree_not_found", "tree %s not found", id)
		}

		keys, err := s.fileService.CascadeDeleteForTree(dbc, id)
		if err != nil {
			return err
		}
		blobKeys = keys

		deleted, err = s.messageRepo.DeleteByTree(dbc, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	// Blobs go after commit; removal is best-effort.
	s.fileService.DeleteBlobs(ctx, blobKeys)

	s.log.Info("Tree deleted", "tree_id", id, "messages_deleted", deleted)
	return deleted, nil
}
