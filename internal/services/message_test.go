package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/clients/objstore"
	"github.com/yungbote/treechat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/apierr"
)

func newMessageService(e *env, provider *scriptedProvider) (MessageService, FileService) {
	store := objstore.NewMemoryStore()
	files := NewFileService(e.log, e.attRepo, store, DefaultFileLimits())
	svc := NewMessageService(e.log, e.txRunner, e.treeRepo, e.messageRepo, e.traversal, files, provider)
	return svc, files
}

func TestAppendTurnCommitsUserAndAssistant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	root := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", time.Now().UTC())

	provider := &scriptedProvider{fragments: []string{"the answer"}}
	svc, _ := newMessageService(e, provider)

	result, err := svc.AppendTurn(ctx, "user-1", AppendTurnRequest{TreeID: tree.ID, Content: "a question"})
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}
	if result.UserMessage.Role != types.RoleUser || result.UserMessage.Content != "a question" {
		t.Fatalf("unexpected user message %+v", result.UserMessage)
	}
	// With no explicit parent the user message hangs off the root.
	if result.UserMessage.ParentID == nil || *result.UserMessage.ParentID != root.ID {
		t.Fatalf("user message should parent to the root")
	}
	if result.AssistantMessage.Content != "the answer" {
		t.Fatalf("unexpected assistant content %q", result.AssistantMessage.Content)
	}
	if result.AssistantMessage.ParentID == nil || *result.AssistantMessage.ParentID != result.UserMessage.ID {
		t.Fatalf("assistant must parent to the user message")
	}

	path, err := svc.GetPath(e.dbc(), result.AssistantMessage.ID)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if len(path) != 3 {
		t.Fatalf("expected lineage of 3, got %d", len(path))
	}
}

func TestAppendTurnLinksReadyAttachments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", time.Now().UTC())
	att := testutil.SeedAttachment(t, ctx, e.gdb, "user-1", 128, types.FileStatusReady)

	provider := &scriptedProvider{fragments: []string{"ok"}}
	svc, files := newMessageService(e, provider)

	result, err := svc.AppendTurn(ctx, "user-1", AppendTurnRequest{
		TreeID:        tree.ID,
		Content:       "see attached",
		AttachmentIDs: []uuid.UUID{att.ID},
	})
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}

	got, err := files.GetFile(e.dbc(), att.ID, "user-1")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.Status != types.FileStatusAttached {
		t.Fatalf("expected attached status, got %s", got.Status)
	}
	if got.MessageID == nil || *got.MessageID != result.UserMessage.ID {
		t.Fatalf("attachment should link to the user message")
	}
	if got.TreeID == nil || *got.TreeID != tree.ID {
		t.Fatalf("attachment should inherit the tree id")
	}
}

func TestAppendTurnRejectsEmptyContent(t *testing.T) {
	e := newEnv(t)
	svc, _ := newMessageService(e, &scriptedProvider{})

	_, err := svc.AppendTurn(context.Background(), "user-1", AppendTurnRequest{TreeID: uuid.New(), Content: "   "})
	if apierr.CodeOf(err) != "empty_content" {
		t.Fatalf("expected empty_content, got %v", err)
	}
}

func TestAppendTurnRejectsTooManyAttachments(t *testing.T) {
	e := newEnv(t)
	svc, _ := newMessageService(e, &scriptedProvider{})

	ids := make([]uuid.UUID, DefaultFileLimits().MaxAttachmentsPerMessage+1)
	for i := range ids {
		ids[i] = uuid.New()
	}
	_, err := svc.AppendTurn(context.Background(), "user-1", AppendTurnRequest{
		TreeID:        uuid.New(),
		Content:       "hi",
		AttachmentIDs: ids,
	})
	if apierr.CodeOf(err) != "too_many_attachments" {
		t.Fatalf("expected too_many_attachments, got %v", err)
	}
}

func TestAppendTurnRejectsForeignParent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	other := testutil.SeedTree(t, ctx, e.gdb, nil)
	foreign := testutil.SeedMessage(t, ctx, e.gdb, other.ID, nil, types.RoleSystem, "root", time.Now().UTC())

	svc, _ := newMessageService(e, &scriptedProvider{fragments: []string{"x"}})
	_, err := svc.AppendTurn(ctx, "user-1", AppendTurnRequest{
		TreeID:   tree.ID,
		Content:  "hi",
		ParentID: &foreign.ID,
	})
	if apierr.CodeOf(err) != "invalid_parent" {
		t.Fatalf("expected invalid_parent, got %v", err)
	}
}

func TestAppendTurnProviderFailureKeepsUserMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", time.Now().UTC())

	provider := &scriptedProvider{err: errInjected, failAfter: 0}
	svc, _ := newMessageService(e, provider)

	_, err := svc.AppendTurn(ctx, "user-1", AppendTurnRequest{TreeID: tree.ID, Content: "doomed"})
	if apierr.CodeOf(err) != "provider_failure" {
		t.Fatalf("expected provider_failure, got %v", err)
	}

	msgs, err := svc.ListTreeMessages(e.dbc(), tree.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The first commit point held: root plus the user message, no reply.
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages after provider failure, got %d", len(msgs))
	}
	if msgs[len(msgs)-1].Role != types.RoleUser {
		t.Fatalf("user message should survive the provider failure")
	}
}

func TestAppendTurnStreamEmitsLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", time.Now().UTC())

	provider := &scriptedProvider{fragments: []string{"Hel", "lo"}}
	svc, _ := newMessageService(e, provider)

	var events []TurnEvent
	err := svc.AppendTurnStream(ctx, "user-1", AppendTurnRequest{TreeID: tree.ID, Content: "greet me"}, func(ev TurnEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	wantTypes := []string{TurnEventStart, TurnEventToken, TurnEventToken, TurnEventEnd}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(events))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].Type)
		}
	}
	if events[0].UserMessage == nil || events[0].UserMessage.Content != "greet me" {
		t.Fatalf("start event must carry the committed user message")
	}
	if events[1].Delta != "Hel" || events[2].Delta != "lo" {
		t.Fatalf("unexpected deltas %q %q", events[1].Delta, events[2].Delta)
	}
	if events[3].AssistantMessage == nil || events[3].AssistantMessage.Content != "Hello" {
		t.Fatalf("end event must carry the assembled assistant message")
	}

	msgs, err := svc.ListTreeMessages(e.dbc(), tree.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected root + user + assistant, got %d", len(msgs))
	}
}

func TestAppendTurnStreamProviderFailureEmitsErrorEvent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", time.Now().UTC())

	provider := &scriptedProvider{fragments: []string{"par", "tial"}, err: errInjected, failAfter: 1}
	svc, _ := newMessageService(e, provider)

	var events []TurnEvent
	err := svc.AppendTurnStream(ctx, "user-1", AppendTurnRequest{TreeID: tree.ID, Content: "doomed"}, func(ev TurnEvent) error {
		events = append(events, ev)
		return nil
	})
	if apierr.CodeOf(err) != "provider_failure" {
		t.Fatalf("expected provider_failure, got %v", err)
	}

	last := events[len(events)-1]
	if last.Type != TurnEventError {
		t.Fatalf("expected terminal error event, got %s", last.Type)
	}

	msgs, listErr := svc.ListTreeMessages(e.dbc(), tree.ID)
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(msgs) != 2 {
		t.Fatalf("no assistant message may persist after a mid-stream failure, got %d messages", len(msgs))
	}
}

func TestDeleteSubtreeRemovesDescendants(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)

	base := time.Now().UTC()
	root := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", base)
	u1 := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, &root.ID, types.RoleUser, "q1", base.Add(time.Second))
	a1 := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, &u1.ID, types.RoleAssistant, "r1", base.Add(2*time.Second))
	testutil.SeedMessage(t, ctx, e.gdb, tree.ID, &a1.ID, types.RoleUser, "follow-up", base.Add(3*time.Second))
	keep := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, &root.ID, types.RoleUser, "sibling", base.Add(4*time.Second))

	svc, _ := newMessageService(e, &scriptedProvider{})
	deleted, err := svc.DeleteSubtree(ctx, u1.ID)
	if err != nil {
		t.Fatalf("delete subtree: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}

	msgs, err := svc.ListTreeMessages(e.dbc(), tree.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected root + sibling to remain, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.ID != root.ID && m.ID != keep.ID {
			t.Fatalf("unexpected survivor %s", m.ID)
		}
	}
}

func TestDeleteSubtreeExpandsAssistantToItsUserPrompt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)

	base := time.Now().UTC()
	root := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", base)
	u := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, &root.ID, types.RoleUser, "q", base.Add(time.Second))
	a := testutil.SeedMessage(t, ctx, e.gdb, tree.ID, &u.ID, types.RoleAssistant, "r", base.Add(2*time.Second))

	svc, _ := newMessageService(e, &scriptedProvider{})
	deleted, err := svc.DeleteSubtree(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete subtree: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleting a reply should take its prompt too, got %d", deleted)
	}

	msgs, err := svc.ListTreeMessages(e.dbc(), tree.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != root.ID {
		t.Fatalf("only the root should remain")
	}
}

func TestDeleteSubtreeUnknownMessage(t *testing.T) {
	e := newEnv(t)
	svc, _ := newMessageService(e, &scriptedProvider{})
	if _, err := svc.DeleteSubtree(context.Background(), uuid.New()); !apierr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendTurnTouchesTree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tree := testutil.SeedTree(t, ctx, e.gdb, nil)
	testutil.SeedMessage(t, ctx, e.gdb, tree.ID, nil, types.RoleSystem, "root", time.Now().UTC())

	stale := time.Now().UTC().Add(-time.Hour)
	if err := e.gdb.Model(&types.Tree{}).Where("id = ?", tree.ID).Update("updated_at", stale).Error; err != nil {
		t.Fatalf("backdate tree: %v", err)
	}

	svc, _ := newMessageService(e, &scriptedProvider{fragments: []string{"ok"}})
	if _, err := svc.AppendTurn(ctx, "user-1", AppendTurnRequest{TreeID: tree.ID, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := e.treeRepo.GetByIDs(e.dbc(), []uuid.UUID{tree.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("reload tree: %v", err)
	}
	if !rows[0].UpdatedAt.After(stale) {
		t.Fatalf("appending a turn should bump updated_at, still %v", rows[0].UpdatedAt)
	}
}
