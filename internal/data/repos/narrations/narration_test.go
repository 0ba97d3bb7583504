package narrations

import (
	"context"
	"testing"

	"github.com/yungbote/dubforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
)

func TestNarrationRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewNarrationRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "narr@example.com")
	job := testutil.SeedJob(t, ctx, tx, user.ID, domain.JobCompleted)

	n := &domain.Narration{
		UserID: user.ID,
		JobID:  &job.ID,
		Voice:  "en_US-amy-medium",
		Status: domain.NarrationPending,
	}
	if _, err := repo.Create(dbc, n); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byJob, err := repo.GetByJobID(dbc, job.ID)
	if err != nil {
		t.Fatalf("GetByJobID: %v", err)
	}
	if byJob == nil || byJob.ID != n.ID {
		t.Fatalf("GetByJobID returned %+v", byJob)
	}

	listed, err := repo.ListByUser(dbc, user.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("ListByUser returned %d narrations, want 1", len(listed))
	}
}

func TestNarrationRepoMergeGuard(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewNarrationRepo(db, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "merge@example.com")
	job := testutil.SeedJob(t, ctx, tx, user.ID, domain.JobCompleted)
	n := testutil.SeedNarration(t, ctx, tx, user.ID, &job.ID, domain.NarrationCompleted)

	if err := repo.UpdateFields(dbc, n.ID, map[string]interface{}{
		"merge_status": domain.MergeCanceled,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	// The merge guard checks merge_status, not the narration status, so
	// a canceled merge blocks merge writes even on a COMPLETED narration.
	touched, err := repo.UpdateFieldsUnlessMergeStatus(dbc, n.ID,
		[]domain.MergeStatus{domain.MergeCanceled},
		map[string]interface{}{"merge_status": domain.MergeCompleted})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessMergeStatus: %v", err)
	}
	if touched {
		t.Fatal("merge update must be rejected after merge cancel")
	}

	touched, err = repo.UpdateFieldsUnlessStatus(dbc, n.ID,
		[]domain.NarrationStatus{domain.NarrationCanceled},
		map[string]interface{}{"error_details": "x"})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if !touched {
		t.Fatal("narration-level update must still land")
	}
}
