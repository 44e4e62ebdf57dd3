package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/treechat-backend/internal/clients/llm"
	"github.com/yungbote/treechat-backend/internal/data/db"
	"github.com/yungbote/treechat-backend/internal/data/repos"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/apierr"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

const (
	TurnEventStart = "start"
	TurnEventToken = "token"
	TurnEventEnd   = "end"
	TurnEventError = "error"
)

// TurnEvent is one step of a streaming append: start carries the committed
// user message and its resolved attachments, token carries one delta, end
// carries the persisted assistant message, error carries the failure reason.
type TurnEvent struct {
	Type             string           `json:"type"`
	UserMessage      *types.Message   `json:"user_message,omitempty"`
	Attachments      []map[string]any `json:"attachments,omitempty"`
	Delta            string           `json:"delta,omitempty"`
	AssistantMessage *types.Message   `json:"assistant_message,omitempty"`
	Error            string           `json:"error,omitempty"`
}

type AppendTurnRequest struct {
	TreeID        uuid.UUID
	Content       string
	ParentID      *uuid.UUID
	AttachmentIDs []uuid.UUID
	// APIKey overrides the configured provider key for this request only.
	APIKey string
}

type AppendTurnResult struct {
	UserMessage      *types.Message      `json:"user_message"`
	AssistantMessage *types.Message      `json:"assistant_message"`
	Attachments      []*types.Attachment `json:"-"`
}

type MessageService interface {
	AppendTurn(ctx context.Context, uploaderID string, req AppendTurnRequest) (*AppendTurnResult, error)
	AppendTurnStream(ctx context.Context, uploaderID string, req AppendTurnRequest, emit func(TurnEvent) error) error
	GetPath(dbc dbctx.Context, messageID uuid.UUID) ([]PathEntry, error)
	ListTreeMessages(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error)
	// DeleteSubtree removes a message and all its descendants. An assistant
	// target with a user parent expands to the parent, so the pair goes
	// together.
	DeleteSubtree(ctx context.Context, messageID uuid.UUID) (int64, error)
}

type messageService struct {
	log         *logger.Logger
	txRunner    db.TxRunner
	treeRepo    repos.TreeRepo
	messageRepo repos.MessageRepo
	traversal   TraversalService
	fileService FileService
	provider    llm.Client
}

func NewMessageService(
	baseLog *logger.Logger,
	txRunner db.TxRunner,
	treeRepo repos.TreeRepo,
	messageRepo repos.MessageRepo,
	traversal TraversalService,
	fileService FileService,
	provider llm.Client,
) MessageService {
	return &messageService{
		log:         baseLog.With("service", "MessageService"),
		txRunner:    txRunner,
		treeRepo:    treeRepo,
		messageRepo: messageRepo,
		traversal:   traversal,
		fileService: fileService,
		provider:    provider,
	}
}

// committedTurn is the state after the first commit point: the user message
// and its attachment links exist; no assistant message does yet.
type committedTurn struct {
	userMessage *types.Message
	attachments []*types.Attachment
	path        []llm.ChatMessage
}

// commitUserTurn validates attachments, resolves the parent, and persists the
// user message plus its attachment links in one transaction. The provider is
// never called inside this boundary.
func (s *messageService) commitUserTurn(ctx context.Context, uploaderID string, req AppendTurnRequest) (*committedTurn, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apierr.Validation("empty_content", "message content required")
	}
	if max := s.fileService.Limits().MaxAttachmentsPerMessage; len(req.AttachmentIDs) > max {
		return nil, apierr.Validation("too_many_attachments", "at most %d attachments per message", max)
	}

	var out committedTurn
	err := s.txRunner.InTx(ctx, func(dbc dbctx.Context) error {
		trees, err := s.treeRepo.GetByIDs(dbc, []uuid.UUID{req.TreeID})
		if err != nil {
			return err
		}
		if len(trees) == 0 {
			return apierr.NotFound("tree_not_found", "tree %s not found", req.TreeID)
		}

		attachments, err := s.fileService.RequireAttachments(dbc, req.AttachmentIDs, uploaderID)
		if err != nil {
			return err
		}

		parentID := req.ParentID
		if parentID != nil {
			parents, err := s.messageRepo.GetByIDs(dbc, []uuid.UUID{*parentID})
			if err != nil {
				return err
			}
			if len(parents) == 0 || parents[0].TreeID != req.TreeID {
				return apierr.Validation("invalid_parent", "parent %s is not in tree %s", *parentID, req.TreeID)
			}
		} else {
			root, err := s.traversal.ResolveRoot(dbc, req.TreeID)
			if err != nil {
				return err
			}
			if root != nil {
				parentID = &root.ID
			}
		}

		userMsg := &types.Message{
			ID:        uuid.New(),
			TreeID:    req.TreeID,
			ParentID:  parentID,
			Role:      types.RoleUser,
			Content:   req.Content,
			CreatedAt: time.Now().UTC(),
		}
		if len(attachments) > 0 {
			ids := make([]string, 0, len(attachments))
			for _, a := range attachments {
				ids = append(ids, a.ID.String())
			}
			raw, _ := json.Marshal(map[string]any{"attachment_ids": ids})
			userMsg.Metadata = datatypes.JSON(raw)
		}
		if _, err := s.messageRepo.Create(dbc, []*types.Message{userMsg}); err != nil {
			return err
		}

		if err := s.fileService.MarkAttached(dbc, attachments, req.TreeID, userMsg.ID); err != nil {
			return err
		}

		// New activity bumps the tree's updated_at.
		if err := s.treeRepo.Touch(dbc, req.TreeID); err != nil {
			return err
		}

		path, err := s.traversal.PathToRoot(dbc, userMsg.ID)
		if err != nil {
			return err
		}
		chat := make([]llm.ChatMessage, 0, len(path))
		for _, entry := range path {
			chat = append(chat, llm.ChatMessage{Role: entry.Message.Role, Content: entry.Message.Content})
		}

		out.userMessage = userMsg
		out.attachments = attachments
		out.path = chat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *messageService) providerFor(req AppendTurnRequest) llm.Client {
	if req.APIKey != "" {
		return s.provider.WithAPIKey(req.APIKey)
	}
	return s.provider
}

// persistAssistant is the second commit point.
func (s *messageService) persistAssistant(ctx context.Context, turn *committedTurn, content string) (*types.Message, error) {
	assistant := &types.Message{
		ID:        uuid.New(),
		TreeID:    turn.userMessage.TreeID,
		ParentID:  &turn.userMessage.ID,
		Role:      types.RoleAssistant,
		Content:   strings.TrimSpace(content),
		CreatedAt: time.Now().UTC(),
	}
	err := s.txRunner.InTx(ctx, func(dbc dbctx.Context) error {
		_, err := s.messageRepo.Create(dbc, []*types.Message{assistant})
		return err
	})
	if err != nil {
		return nil, err
	}
	return assistant, nil
}

func (s *messageService) AppendTurn(ctx context.Context, uploaderID string, req AppendTurnRequest) (*AppendTurnResult, error) {
	turn, err := s.commitUserTurn(ctx, uploaderID, req)
	if err != nil {
		return nil, err
	}

	text, err := s.providerFor(req).Complete(ctx, CompactPath(turn.path))
	if err != nil {
		// The user message stays committed; only the reply is missing.
		s.log.Error("Completion failed", "user_message_id", turn.userMessage.ID, "error", err)
		return nil, apierr.ProviderFailure(err)
	}

	assistant, err := s.persistAssistant(ctx, turn, text)
	if err != nil {
		return nil, err
	}

	s.log.Info("Turn appended",
		"tree_id", req.TreeID,
		"user_message_id", turn.userMessage.ID,
		"assistant_message_id", assistant.ID,
	)
	return &AppendTurnResult{
		UserMessage:      turn.userMessage,
		AssistantMessage: assistant,
		Attachments:      turn.attachments,
	}, nil
}

// AppendTurnStream runs the streaming variant: start event after the first
// commit point, one token event per provider delta, then the assistant
// persist and an end event. Cancellation stops fragment consumption and
// skips the persist; the already-committed user message is kept.
func (s *messageService) AppendTurnStream(ctx context.Context, uploaderID string, req AppendTurnRequest, emit func(TurnEvent) error) error {
	turn, err := s.commitUserTurn(ctx, uploaderID, req)
	if err != nil {
		return err
	}

	serialized := make([]map[string]any, 0, len(turn.attachments))
	for _, a := range turn.attachments {
		serialized = append(serialized, s.fileService.Serialize(ctx, a))
	}
	if err := emit(TurnEvent{
		Type:        TurnEventStart,
		UserMessage: turn.userMessage,
		Attachments: serialized,
	}); err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var emitErr error
	full, provErr := s.providerFor(req).StreamComplete(streamCtx, CompactPath(turn.path), func(delta string) {
		if emitErr != nil {
			return
		}
		if err := emit(TurnEvent{Type: TurnEventToken, Delta: delta}); err != nil {
			// Consumer is gone: stop pulling fragments.
			emitErr = err
			cancel()
		}
	})

	if emitErr != nil {
		s.log.Warn("Stream consumer disconnected", "user_message_id", turn.userMessage.ID)
		return emitErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if provErr != nil {
		s.log.Error("Streaming completion failed", "user_message_id", turn.userMessage.ID, "error", provErr)
		wrapped := apierr.ProviderFailure(provErr)
		_ = emit(TurnEvent{Type: TurnEventError, Error: wrapped.Error()})
		return wrapped
	}

	assistant, err := s.persistAssistant(ctx, turn, full)
	if err != nil {
		_ = emit(TurnEvent{Type: TurnEventError, Error: err.Error()})
		return err
	}

	s.log.Info("Streamed turn appended",
		"tree_id", req.TreeID,
		"user_message_id", turn.userMessage.ID,
		"assistant_message_id", assistant.ID,
	)
	return emit(TurnEvent{Type: TurnEventEnd, AssistantMessage: assistant})
}

func (s *messageService) GetPath(dbc dbctx.Context, messageID uuid.UUID) ([]PathEntry, error) {
	return s.traversal.PathToRoot(dbc, messageID)
}

func (s *messageService) ListTreeMessages(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error) {
	return s.messageRepo.ListByTree(dbc, treeID)
}

func (s *messageService) DeleteSubtree(ctx context.Context, messageID uuid.UUID) (int64, error) {
	var (
		deleted  int64
		blobKeys []string
	)
	err := s.txRunner.InTx(ctx, func(dbc dbctx.Context) error {
		rows, err := s.messageRepo.GetByIDs(dbc, []uuid.UUID{messageID})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierr.NotFound("message_not_found", "message %s not found", messageID)
		}
		target := rows[0]

		// An assistant reply and its user prompt are deleted as a pair.
		if target.Role == types.RoleAssistant && target.ParentID != nil {
			parents, err := s.messageRepo.GetByIDs(dbc, []uuid.UUID{*target.ParentID})
			if err != nil {
				return err
			}
			if len(parents) > 0 && parents[0].Role == types.RoleUser {
				target = parents[0]
			}
		}

		ids, err := s.traversal.Subtree(dbc, target.ID)
		if err != nil {
			return err
		}

		keys, err := s.fileService.CascadeDeleteForMessages(dbc, ids)
		if err != nil {
			return err
		}
		blobKeys = keys

		deleted, err = s.messageRepo.DeleteByIDs(dbc, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.fileService.DeleteBlobs(ctx, blobKeys)

	s.log.Info("Subtree deleted", "message_id", messageID, "deleted", deleted)
	return deleted, nil
}
