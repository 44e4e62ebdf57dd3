package services

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/data/repos"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

const graphExcerptMaxRunes = 48

// GraphNode is one display node. Role is "system", "turn", "assistant", or
// "user"; a turn node merges a user message with its assistant reply and
// carries the consumed user message id.
type GraphNode struct {
	ID             uuid.UUID  `json:"id"`
	Role           string     `json:"role"`
	Label          string     `json:"label"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	UserLabel      string     `json:"user_label,omitempty"`
	AssistantLabel string     `json:"assistant_label,omitempty"`
	UserMessageID  *uuid.UUID `json:"user_message_id,omitempty"`
}

type GraphEdge struct {
	From uuid.UUID `json:"from"`
	To   uuid.UUID `json:"to"`
}

type GraphView struct {
	TreeID uuid.UUID   `json:"tree_id"`
	Nodes  []GraphNode `json:"nodes"`
	Edges  []GraphEdge `json:"edges"`
}

type GraphService interface {
	GraphView(dbc dbctx.Context, treeID uuid.UUID) (*GraphView, error)
}

type graphService struct {
	log         *logger.Logger
	messageRepo repos.MessageRepo
}

func NewGraphService(baseLog *logger.Logger, messageRepo repos.MessageRepo) GraphService {
	return &graphService{
		log:         baseLog.With("service", "GraphService"),
		messageRepo: messageRepo,
	}
}

// excerpt collapses whitespace and hard-caps the text at graphExcerptMaxRunes
// runes, appending an ellipsis when truncated.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= graphExcerptMaxRunes {
		return s
	}
	return string(runes[:graphExcerptMaxRunes]) + "…"
}

func (s *graphService) GraphView(dbc dbctx.Context, treeID uuid.UUID) (*GraphView, error) {
	msgs, err := s.messageRepo.ListByTree(dbc, treeID)
	if err != nil {
		return nil, err
	}

	// The repo already orders by created_at,id; re-sorting keeps the
	// reduction independent of storage behavior.
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID.String() < msgs[j].ID.String()
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	byID := make(map[uuid.UUID]*types.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}

	view := &GraphView{TreeID: treeID, Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	// consumedBy maps a merged user message to the turn node that absorbed it.
	consumedBy := map[uuid.UUID]uuid.UUID{}

	addNode := func(n GraphNode) {
		view.Nodes = append(view.Nodes, n)
	}

	// Pass 1: system messages stand alone.
	for _, m := range msgs {
		if m.Role != types.RoleSystem {
			continue
		}
		addNode(GraphNode{
			ID:       m.ID,
			Role:     types.RoleSystem,
			Label:    excerpt(m.Content),
			ParentID: m.ParentID,
		})
	}

	// Pass 2: assistant messages merge with a user parent into a turn node;
	// any other parent leaves the assistant standalone.
	for _, m := range msgs {
		if m.Role != types.RoleAssistant {
			continue
		}
		var parent *types.Message
		if m.ParentID != nil {
			parent = byID[*m.ParentID]
		}
		if parent != nil && parent.Role == types.RoleUser {
			consumedBy[parent.ID] = m.ID
			userLabel := "you said: " + excerpt(parent.Content)
			assistantLabel := "reply: " + excerpt(m.Content)
			uid := parent.ID
			addNode(GraphNode{
				ID:             m.ID,
				Role:           "turn",
				Label:          userLabel + " / " + assistantLabel,
				ParentID:       parent.ParentID,
				UserLabel:      userLabel,
				AssistantLabel: assistantLabel,
				UserMessageID:  &uid,
			})
			continue
		}
		addNode(GraphNode{
			ID:       m.ID,
			Role:     types.RoleAssistant,
			Label:    "reply: " + excerpt(m.Content),
			ParentID: m.ParentID,
		})
	}

	// Pass 3: user messages without a reply yet.
	for _, m := range msgs {
		if m.Role != types.RoleUser {
			continue
		}
		if _, ok := consumedBy[m.ID]; ok {
			continue
		}
		addNode(GraphNode{
			ID:       m.ID,
			Role:     types.RoleUser,
			Label:    "you said: " + excerpt(m.Content),
			ParentID: m.ParentID,
		})
	}

	// Edges resolve last: a parent that was merged into a turn node re-points
	// at the turn, so every edge endpoint is a node in the output.
	for i := range view.Nodes {
		n := &view.Nodes[i]
		if n.ParentID == nil {
			continue
		}
		pid := *n.ParentID
		if turnID, ok := consumedBy[pid]; ok {
			pid = turnID
			n.ParentID = &pid
		}
		view.Edges = append(view.Edges, GraphEdge{From: pid, To: n.ID})
	}

	return view, nil
}
