package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/data/repos"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/apierr"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

// PathEntry is one hop of a root-first ancestor chain. The root has depth 0.
type PathEntry struct {
	Message *types.Message `json:"message"`
	Depth   int            `json:"depth"`
}

type TraversalService interface {
	PathToRoot(dbc dbctx.Context, messageID uuid.UUID) ([]PathEntry, error)
	Subtree(dbc dbctx.Context, messageID uuid.UUID) ([]uuid.UUID, error)
	ResolveRoot(dbc dbctx.Context, treeID uuid.UUID) (*types.Message, error)
}

type traversalService struct {
	log         *logger.Logger
	messageRepo repos.MessageRepo
}

func NewTraversalService(baseLog *logger.Logger, messageRepo repos.MessageRepo) TraversalService {
	return &traversalService{
		log:         baseLog.With("service", "TraversalService"),
		messageRepo: messageRepo,
	}
}

// messageArena holds one tree's messages keyed by id with a derived
// children-by-parent index, so traversals run in memory over a single bulk
// load instead of one round trip per hop.
type messageArena struct {
	byID     map[uuid.UUID]*types.Message
	children map[uuid.UUID][]uuid.UUID
}

// loadArena resolves the message and bulk-loads its whole tree. Two store
// queries regardless of depth or fan-out.
func (s *traversalService) loadArena(dbc dbctx.Context, messageID uuid.UUID) (*types.Message, *messageArena, error) {
	rows, err := s.messageRepo.GetByIDs(dbc, []uuid.UUID{messageID})
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, apierr.NotFound("message_not_found", "message %s not found", messageID)
	}
	target := rows[0]

	msgs, err := s.messageRepo.ListByTree(dbc, target.TreeID)
	if err != nil {
		return nil, nil, err
	}

	arena := &messageArena{
		byID:     make(map[uuid.UUID]*types.Message, len(msgs)),
		children: make(map[uuid.UUID][]uuid.UUID, len(msgs)),
	}
	for _, m := range msgs {
		arena.byID[m.ID] = m
	}
	// ListByTree orders by created_at,id; the child lists inherit that order.
	for _, m := range msgs {
		if m.ParentID != nil {
			arena.children[*m.ParentID] = append(arena.children[*m.ParentID], m.ID)
		}
	}
	return target, arena, nil
}

// PathToRoot follows parent links through the arena. A revisited id means
// the parent data forms a cycle; that is an integrity error, never an
// infinite loop.
func (s *traversalService) PathToRoot(dbc dbctx.Context, messageID uuid.UUID) ([]PathEntry, error) {
	target, arena, err := s.loadArena(dbc, messageID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]bool{}
	chain := []*types.Message{}

	current := target
	for {
		if visited[current.ID] {
			s.log.Error("Cycle detected in parent chain", "message_id", current.ID)
			return nil, apierr.Internal("integrity_error", "parent cycle at message %s", current.ID)
		}
		visited[current.ID] = true
		chain = append(chain, current)

		if current.ParentID == nil {
			break
		}
		parent, ok := arena.byID[*current.ParentID]
		if !ok {
			// Dangling parent pointer: stop at the last resolvable ancestor.
			s.log.Warn("Dangling parent reference", "missing_id", *current.ParentID)
			break
		}
		current = parent
	}

	// chain is leaf-first; reverse into root-first order with depths.
	out := make([]PathEntry, len(chain))
	for i := range chain {
		out[len(chain)-1-i] = PathEntry{Message: chain[i], Depth: len(chain) - 1 - i}
	}
	return out, nil
}

// Subtree returns the ids of messageID and every transitive descendant,
// breadth-first, each id exactly once.
func (s *traversalService) Subtree(dbc dbctx.Context, messageID uuid.UUID) ([]uuid.UUID, error) {
	_, arena, err := s.loadArena(dbc, messageID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]bool{messageID: true}
	order := []uuid.UUID{messageID}
	frontier := []uuid.UUID{messageID}

	for len(frontier) > 0 {
		next := []uuid.UUID{}
		for _, id := range frontier {
			for _, childID := range arena.children[id] {
				if visited[childID] {
					s.log.Error("Cycle detected in child expansion", "message_id", childID)
					return nil, apierr.Internal("integrity_error", "child cycle at message %s", childID)
				}
				visited[childID] = true
				order = append(order, childID)
				next = append(next, childID)
			}
		}
		frontier = next
	}
	return order, nil
}

// ResolveRoot picks the designated root of a tree: the earliest parentless
// system message, else the earliest parentless message of any role, else nil.
// Extra roots are permitted but ambiguous, so they are flagged in the log.
func (s *traversalService) ResolveRoot(dbc dbctx.Context, treeID uuid.UUID) (*types.Message, error) {
	roots, err := s.messageRepo.ListRoots(dbc, treeID)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, nil
	}
	if len(roots) > 1 {
		s.log.Warn("Tree has multiple roots", "tree_id", treeID, "count", len(roots))
	}
	for _, m := range roots {
		if m.Role == types.RoleSystem {
			return m, nil
		}
	}
	return roots[0], nil
}
