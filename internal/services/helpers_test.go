package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/treechat-backend/internal/clients/llm"
	"github.com/yungbote/treechat-backend/internal/data/db"
	"github.com/yungbote/treechat-backend/internal/data/repos"
	"github.com/yungbote/treechat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
	"github.com/yungbote/treechat-backend/internal/pkg/logger"
)

// env wires real repos over the shared test database. Service tests write
// through TxRunner transactions, so each test isolates itself with fresh ids
// instead of a rollback.
type env struct {
	gdb         *gorm.DB
	log         *logger.Logger
	treeRepo    repos.TreeRepo
	messageRepo repos.MessageRepo
	attRepo     repos.AttachmentRepo
	txRunner    db.TxRunner
	traversal   TraversalService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	messageRepo := repos.NewMessageRepo(gdb, log)
	return &env{
		gdb:         gdb,
		log:         log,
		treeRepo:    repos.NewTreeRepo(gdb, log),
		messageRepo: messageRepo,
		attRepo:     repos.NewAttachmentRepo(gdb, log),
		txRunner:    db.NewGormTxRunner(gdb),
		traversal:   NewTraversalService(log, messageRepo),
	}
}

func (e *env) dbc() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

// scriptedProvider plays back fragments, optionally failing after failAfter
// fragments have been emitted.
type scriptedProvider struct {
	fragments []string
	failAfter int
	err       error
	calls     int
}

func (p *scriptedProvider) Complete(ctx context.Context, msgs []llm.ChatMessage) (string, error) {
	p.calls++
	if p.err != nil && p.failAfter == 0 {
		return "", p.err
	}
	full := ""
	for _, f := range p.fragments {
		full += f
	}
	return full, nil
}

func (p *scriptedProvider) StreamComplete(ctx context.Context, msgs []llm.ChatMessage, onDelta func(delta string)) (string, error) {
	p.calls++
	full := ""
	for i, f := range p.fragments {
		if p.err != nil && i == p.failAfter {
			return "", p.err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		full += f
		if onDelta != nil {
			onDelta(f)
		}
	}
	if p.err != nil && p.failAfter >= len(p.fragments) {
		return "", p.err
	}
	return full, nil
}

func (p *scriptedProvider) WithAPIKey(key string) llm.Client { return p }

var errInjected = errors.New("injected failure")

// countingMessageRepo tallies store round trips so tests can assert that
// traversals stay bounded regardless of chain depth.
type countingMessageRepo struct {
	repos.MessageRepo
	calls int
}

func (r *countingMessageRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Message, error) {
	r.calls++
	return r.MessageRepo.GetByIDs(dbc, ids)
}

func (r *countingMessageRepo) ListByTree(dbc dbctx.Context, treeID uuid.UUID) ([]*types.Message, error) {
	r.calls++
	return r.MessageRepo.ListByTree(dbc, treeID)
}

func (r *countingMessageRepo) ListByParent(dbc dbctx.Context, treeID uuid.UUID, parentID *uuid.UUID) ([]*types.Message, error) {
	r.calls++
	return r.MessageRepo.ListByParent(dbc, treeID, parentID)
}

// failingMessageRepo delegates to a real repo but fails Create on demand,
// for exercising rollback paths.
type failingMessageRepo struct {
	repos.MessageRepo
	failCreate bool
}

func (r *failingMessageRepo) Create(dbc dbctx.Context, rows []*types.Message) ([]*types.Message, error) {
	if r.failCreate {
		return nil, errInjected
	}
	return r.MessageRepo.Create(dbc, rows)
}
