package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	"github.com/plateful/plateful-backend/pkg/logger"
)

type fakeRevalidationRepo struct {
	rows []models.Subscription
}

func (f *fakeRevalidationRepo) ListForRevalidation(_ context.Context, _ time.Duration, _ int) ([]models.Subscription, error) {
	return f.rows, nil
}

type fakePlayValidator struct {
	res *validation.Result
	err error
}

func (f *fakePlayValidator) Validate(_ context.Context, _, _ string) (*validation.Result, error) {
	return f.res, f.err
}

type fakeRevalidationEngine struct {
	validations   int
	notifications []reconcile.Notification
}

func (f *fakeRevalidationEngine) ApplyValidation(_ context.Context, _ uuid.UUID, _ enums.Platform, _ *validation.Result) (*models.Subscription, error) {
	f.validations++
	return &models.Subscription{}, nil
}

func (f *fakeRevalidationEngine) ApplyNotification(_ context.Context, notif reconcile.Notification) (*models.Subscription, error) {
	f.notifications = append(f.notifications, notif)
	return &models.Subscription{}, nil
}

func newRevalidationJob(t *testing.T, repo *fakeRevalidationRepo, play *fakePlayValidator, engine *fakeRevalidationEngine, now time.Time) Job {
	t.Helper()
	job, err := NewRevalidationJob(RevalidationJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Subscriptions: repo,
		PlayValidator: play,
		Engine:        engine,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewRevalidationJob: %v", err)
	}
	return job
}

func TestRevalidationJobRefreshesAndroid(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	repo := &fakeRevalidationRepo{rows: []models.Subscription{{
		UserID:        uuid.New(),
		Platform:      enums.PlatformAndroid,
		ProductID:     "com.app.premium",
		PurchaseToken: "tok",
		Status:        enums.SubscriptionStatusActive,
		ExpiryDate:    now.Add(6 * time.Hour),
	}}}
	play := &fakePlayValidator{res: &validation.Result{
		IsValid:    true,
		ProductID:  "com.app.premium",
		ExpiryDate: now.Add(30 * 24 * time.Hour),
	}}
	engine := &fakeRevalidationEngine{}
	job := newRevalidationJob(t, repo, play, engine, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if engine.validations != 1 {
		t.Fatalf("expected one revalidation apply, got %d", engine.validations)
	}
	if len(engine.notifications) != 0 {
		t.Fatalf("valid subscription must not be swept")
	}
}

func TestRevalidationJobSweepsExpiredIOS(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	repo := &fakeRevalidationRepo{rows: []models.Subscription{{
		UserID:        uuid.New(),
		Platform:      enums.PlatformIOS,
		ProductID:     "com.app.basic",
		PurchaseToken: "orig-1",
		Status:        enums.SubscriptionStatusActive,
		ExpiryDate:    now.Add(-2 * time.Hour),
	}}}
	engine := &fakeRevalidationEngine{}
	job := newRevalidationJob(t, repo, &fakePlayValidator{}, engine, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(engine.notifications) != 1 {
		t.Fatalf("expected one sweep notification, got %d", len(engine.notifications))
	}
	if engine.notifications[0].Type != enums.NotificationExpired {
		t.Fatalf("sweep should use EXPIRED, got %s", engine.notifications[0].Type)
	}
}

func TestRevalidationJobLeavesPaidWindowAlone(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	repo := &fakeRevalidationRepo{rows: []models.Subscription{{
		UserID:        uuid.New(),
		Platform:      enums.PlatformIOS,
		PurchaseToken: "orig-2",
		Status:        enums.SubscriptionStatusCanceled,
		ExpiryDate:    now.Add(12 * time.Hour),
	}}}
	engine := &fakeRevalidationEngine{}
	job := newRevalidationJob(t, repo, &fakePlayValidator{}, engine, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if engine.validations != 0 || len(engine.notifications) != 0 {
		t.Fatalf("canceled-but-paid subscription must be left alone")
	}
}
