package files

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/treechat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/treechat-backend/internal/domain"
	"github.com/yungbote/treechat-backend/internal/pkg/dbctx"
)

func TestAttachmentRepoQuotaCountsExcludeDeleted(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewAttachmentRepo(gdb, testutil.Logger(t))
	uploader := "quota-user-" + uuid.NewString()[:8]

	a := testutil.SeedAttachment(t, ctx, tx, uploader, 100, types.FileStatusReady)
	testutil.SeedAttachment(t, ctx, tx, uploader, 250, types.FileStatusPending)

	count, err := repo.CountActiveByUploader(dbc, uploader)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active, got %d", count)
	}

	total, err := repo.SumActiveBytesByUploader(dbc, uploader)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 350 {
		t.Fatalf("expected 350 bytes, got %d", total)
	}

	if _, err := repo.SoftDeleteByIDs(dbc, []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	count, _ = repo.CountActiveByUploader(dbc, uploader)
	if count != 1 {
		t.Fatalf("expected 1 active after delete, got %d", count)
	}
	total, _ = repo.SumActiveBytesByUploader(dbc, uploader)
	if total != 250 {
		t.Fatalf("expected 250 bytes after delete, got %d", total)
	}
}

func TestAttachmentRepoSumEmptyUploaderIsZero(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewAttachmentRepo(gdb, testutil.Logger(t))

	total, err := repo.SumActiveBytesByUploader(dbc, "nobody-"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 for unknown uploader, got %d", total)
	}
}

func TestAttachmentRepoSoftDeleteMarksStatusAndTimestamp(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewAttachmentRepo(gdb, testutil.Logger(t))
	uploader := "del-user-" + uuid.NewString()[:8]
	a := testutil.SeedAttachment(t, ctx, tx, uploader, 64, types.FileStatusAttached)

	affected, err := repo.SoftDeleteByIDs(dbc, []uuid.UUID{a.ID})
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected, got %d", affected)
	}

	rows, err := repo.GetByIDs(dbc, []uuid.UUID{a.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("get: %v (%d rows)", err, len(rows))
	}
	if rows[0].Status != types.FileStatusDeleted || rows[0].DeletedAt == nil {
		t.Fatalf("expected deleted status with timestamp, got %s/%v", rows[0].Status, rows[0].DeletedAt)
	}

	// Soft delete is idempotent at the query layer.
	affected, _ = repo.SoftDeleteByIDs(dbc, []uuid.UUID{a.ID})
	if affected != 0 {
		t.Fatalf("expected 0 affected on second soft delete, got %d", affected)
	}
}

func TestAttachmentRepoListByMessageIDs(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	repo := NewAttachmentRepo(gdb, testutil.Logger(t))
	uploader := "msg-user-" + uuid.NewString()[:8]

	a := testutil.SeedAttachment(t, ctx, tx, uploader, 1, types.FileStatusAttached)
	msgID := uuid.New()
	if err := repo.UpdateFields(dbc, a.ID, map[string]interface{}{"message_id": msgID}); err != nil {
		t.Fatalf("link: %v", err)
	}

	rows, err := repo.ListByMessageIDs(dbc, []uuid.UUID{msgID})
	if err != nil {
		t.Fatalf("list by message: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != a.ID {
		t.Fatalf("expected the linked attachment, got %v", rows)
	}

	rows, err = repo.ListByMessageIDs(dbc, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("empty id set must be a no-op, got %v (%v)", rows, err)
	}
}
