package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/logger"
)

type fakeUsageRepo struct {
	rows        []models.FeatureUsage
	listErr     error
	resetErr    map[uuid.UUID]error
	lastPeriod  time.Time
	resetCalled []uuid.UUID
}

func (f *fakeUsageRepo) ListStale(_ context.Context, periodStart time.Time, _ int) ([]models.FeatureUsage, error) {
	f.lastPeriod = periodStart
	return f.rows, f.listErr
}

func (f *fakeUsageRepo) ResetWithHistory(_ context.Context, row models.FeatureUsage, _ time.Time) error {
	if err, ok := f.resetErr[row.UserID]; ok {
		return err
	}
	f.resetCalled = append(f.resetCalled, row.UserID)
	return nil
}

func newUsageResetJob(t *testing.T, repo *fakeUsageRepo, now time.Time) Job {
	t.Helper()
	job, err := NewUsageResetJob(UsageResetJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		UsageRepo: repo,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewUsageResetJob: %v", err)
	}
	return job
}

func TestUsageResetJobUsesMonthBoundary(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	repo := &fakeUsageRepo{}
	job := newUsageResetJob(t, repo, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !repo.lastPeriod.Equal(want) {
		t.Fatalf("expected period start %s, got %s", want, repo.lastPeriod)
	}
}

func TestUsageResetJobResetsEachStaleRow(t *testing.T) {
	now := time.Date(2026, 8, 1, 1, 0, 0, 0, time.UTC)
	userA := uuid.New()
	userB := uuid.New()
	repo := &fakeUsageRepo{rows: []models.FeatureUsage{
		{UserID: userA, RecipesCreated: 5, LastReset: now.AddDate(0, -1, 0)},
		{UserID: userB, MealPlansCreated: 2, LastReset: now.AddDate(0, -2, 0)},
	}}
	job := newUsageResetJob(t, repo, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.resetCalled) != 2 {
		t.Fatalf("expected 2 resets, got %d", len(repo.resetCalled))
	}
}

func TestUsageResetJobContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 8, 1, 1, 0, 0, 0, time.UTC)
	failing := uuid.New()
	healthy := uuid.New()
	repo := &fakeUsageRepo{
		rows: []models.FeatureUsage{
			{UserID: failing},
			{UserID: healthy},
		},
		resetErr: map[uuid.UUID]error{failing: errors.New("boom")},
	}
	job := newUsageResetJob(t, repo, now)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if len(repo.resetCalled) != 1 || repo.resetCalled[0] != healthy {
		t.Fatalf("one failure must not stop the pass")
	}
}
