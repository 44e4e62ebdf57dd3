package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/data/db"
	"github.com/yungbote/treechat-backend/internal/data/repos"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

// ForkResult is the new tree plus the clone of the requested message, the
// branch's new current position.
type ForkResult struct {
	Tree          *types.Tree    `json:"tree"`
	ActiveMessage *types.Message `json:"active_message"`
	Cloned        int            `json:"cloned"`
}

type ForkService interface {
	Fork(ctx context.Context, messageID uuid.UUID) (*ForkResult, error)
}

type forkService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	treeRepo    repos.TreeRepo
	messageRepo repos.MessageRepo
	traversal   TraversalService
}

func NewForkService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	treeRepo repos.TreeRepo,
	messageRepo repos.MessageRepo,
	traversal TraversalService,
) ForkService {
	return &forkService{
		log:         baseLog.With("service", "ForkService"),
		txRunner:    txRunner,
		treeRepo:    treeRepo,
		messageRepo: messageRepo,
		traversal:   traversal,
	}
}

// Fork clones the lineage of messageID into a new tree. Everything commits
// atomically: on any failure the new tree and all clones roll back.
func (s *forkService) Fork(ctx context.Context, messageID uuid.UUID) (*ForkResult, error) {
	var result *ForkResult
	err := s.txRunner.InTx(ctx, func(dbc dbctx.Context) error {
		path, err := s.traversal.PathToRoot(dbc, messageID)
		if err != nil {
			return err
		}
		source := path[len(path)-1].Message

		sourceTrees, err := s.treeRepo.GetByIDs(dbc, []uuid.UUID{source.TreeID})
		if err != nil {
			return err
		}

		title := "Forked branch"
		if len(sourceTrees) > 0 && sourceTrees[0].Title != nil && *sourceTrees[0].Title != "" {
			title = *sourceTrees[0].Title + " (branch)"
		}

		now := time.Now().UTC()
		newTree := &types.Tree{
			ID:        uuid.New(),
			Title:     &title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.treeRepo.Create(dbc, []*types.Tree{newTree}); err != nil {
			return err
		}

		// Root-to-leaf order guarantees each clone's parent already exists
		// in the id map.
		idMap := make(map[uuid.UUID]uuid.UUID, len(path))
		clones := make([]*types.Message, 0, len(path))
		for i, entry := range path {
			src := entry.Message
			clone := &types.Message{
				ID:       uuid.New(),
				TreeID:   newTree.ID,
				Role:     src.Role,
				Content:  src.Content,
				Metadata: src.Metadata,
				// Preserve relative order under the created_at,id sort.
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			}
			// A truncated lineage starts at a message whose parent was never
			// cloned; that clone becomes the new tree's root.
			if src.ParentID != nil {
				if newParent, ok := idMap[*src.ParentID]; ok {
					clone.ParentID = &newParent
				}
			}
			idMap[src.ID] = clone.ID
			clones = append(clones, clone)
		}
		if _, err := s.messageRepo.Create(dbc, clones); err != nil {
			return err
		}

		result = &ForkResult{
			Tree:          newTree,
			ActiveMessage: clones[len(clones)-1],
			Cloned:        len(clones),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Branch forked",
		"source_message_id", messageID,
		"new_tree_id", result.Tree.ID,
		"cloned", result.Cloned,
	)
	return result, nil
}
