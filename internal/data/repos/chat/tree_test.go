package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
)

func strPtr(s string) *string { return &s }

func TestTreeRepoListOrdersUntitledLast(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewTreeRepo(gdb, testutil.Logger(t))

	testutil.SeedTree(t, ctx, tx, nil)
	b := testutil.SeedTree(t, ctx, tx, strPtr("beta"))
	a := testutil.SeedTree(t, ctx, tx, strPtr("alpha"))

	rows, err := repo.List(dbc, 0)
	if err != nil {
		t.Fatalf("list trees: %v", err)
	}
	if len(rows) < 3 {
		t.Fatalf("expected at least 3 trees, got %d", len(rows))
	}
	if rows[0].ID != a.ID || rows[1].ID != b.ID {
		t.Fatalf("expected titled trees first in title order, got %v then %v", rows[0].Title, rows[1].Title)
	}
	if rows[len(rows)-1].Title != nil {
		t.Fatalf("expected untitled tree last, got %q", *rows[len(rows)-1].Title)
	}
}

func TestTreeRepoUpdateTitle(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewTreeRepo(gdb, testutil.Logger(t))
	tree := testutil.SeedTree(t, ctx, tx, strPtr("old"))

	if err := repo.UpdateTitle(dbc, tree.ID, strPtr("new")); err != nil {
		t.Fatalf("update title: %v", err)
	}
	rows, err := repo.GetByIDs(dbc, []uuid.UUID{tree.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("get tree: %v (%d rows)", err, len(rows))
	}
	if rows[0].Title == nil || *rows[0].Title != "new" {
		t.Fatalf("expected title %q, got %v", "new", rows[0].Title)
	}

	if err := repo.UpdateTitle(dbc, tree.ID, nil); err != nil {
		t.Fatalf("clear title: %v", err)
	}
	rows, _ = repo.GetByIDs(dbc, []uuid.UUID{tree.ID})
	if rows[0].Title != nil {
		t.Fatalf("expected nil title, got %q", *rows[0].Title)
	}
}

func TestTreeRepoDeleteIsIdempotent(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewTreeRepo(gdb, testutil.Logger(t))
	tree := testutil.SeedTree(t, ctx, tx, strPtr("gone"))

	affected, err := repo.DeleteByID(dbc, tree.ID)
	if err != nil {
		t.Fatalf("delete tree: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected, got %d", affected)
	}

	affected, err = repo.DeleteByID(dbc, tree.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 affected on second delete, got %d", affected)
	}
}

func TestTreeRepoCreateRoundTrip(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewTreeRepo(gdb, testutil.Logger(t))

	in := &types.Tree{
		ID:        uuid.New(),
		Title:     strPtr("round trip"),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := repo.Create(dbc, []*types.Tree{in}); err != nil {
		t.Fatalf("create tree: %v", err)
	}
	rows, err := repo.GetByIDs(dbc, []uuid.UUID{in.ID})
	if err != nil {
		t.Fatalf("get tree: %v", err)
	}
	if len(rows) != 1 || rows[0].Title == nil || *rows[0].Title != "round trip" {
		t.Fatalf("unexpected row: %+v", rows)
	}
}
