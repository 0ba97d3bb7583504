package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dubforge-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *domain.User {
	tb.Helper()
	u := &domain.User{
		ID:       uuid.New(),
		Email:    email,
		Password: "pw",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, status domain.JobStatus) *domain.Job {
	tb.Helper()
	j := &domain.Job{
		ID:               uuid.New(),
		UserID:           userID,
		OriginalFilename: "lecture.mp4",
		StorageKey:       "uploads/" + uuid.NewString() + ".mp4",
		MediaKind:        domain.MediaVideo,
		Status:           status,
		Priority:         5,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedNarration(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, jobID *uuid.UUID, status domain.NarrationStatus) *domain.Narration {
	tb.Helper()
	n := &domain.Narration{
		ID:     uuid.New(),
		UserID: userID,
		JobID:  jobID,
		Voice:  "en_US-amy-medium",
		Status: status,
	}
	if jobID == nil {
		n.TextContent = "hello world"
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed narration: %v", err)
	}
	return n
}
