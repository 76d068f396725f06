package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	"github.com/plateful/plateful-backend/pkg/logger"
)

const (
	defaultRevalidationLimit  = 250
	defaultRevalidationWindow = 24 * time.Hour
)

type revalidationRepository interface {
	ListForRevalidation(ctx context.Context, window time.Duration, limit int) ([]models.Subscription, error)
}

type playValidator interface {
	Validate(ctx context.Context, purchaseToken, productID string) (*validation.Result, error)
}

type reconcileEngine interface {
	ApplyValidation(ctx context.Context, userID uuid.UUID, platform enums.Platform, res *validation.Result) (*models.Subscription, error)
	ApplyNotification(ctx context.Context, notif reconcile.Notification) (*models.Subscription, error)
}

// RevalidationJobParams configures the near-expiry revalidation job.
type RevalidationJobParams struct {
	Logger        *logger.Logger
	Subscriptions revalidationRepository
	PlayValidator playValidator
	Engine        reconcileEngine
	Window        time.Duration
	Limit         int
	Now           func() time.Time
}

// NewRevalidationJob builds the job that re-checks subscriptions around
// their expiry so missed store notifications self-heal.
func NewRevalidationJob(params RevalidationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.PlayValidator == nil {
		return nil, fmt.Errorf("play validator required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	window := params.Window
	if window <= 0 {
		window = defaultRevalidationWindow
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRevalidationLimit
	}
	return &revalidationJob{
		logg:   params.Logger,
		subs:   params.Subscriptions,
		play:   params.PlayValidator,
		engine: params.Engine,
		window: window,
		limit:  limit,
		now:    now,
	}, nil
}

type revalidationJob struct {
	logg   *logger.Logger
	subs   revalidationRepository
	play   playValidator
	engine reconcileEngine
	window time.Duration
	limit  int
	now    func() time.Time
}

func (j *revalidationJob) Name() string { return "subscription-revalidation" }

// Run re-validates Android subscriptions near expiry against the Play
// API. iOS receipts cannot be re-posted without the client, so expired
// iOS records sweep to EXPIRED through the engine instead; App Store
// server notifications cover the rest.
func (j *revalidationJob) Run(ctx context.Context) error {
	rows, err := j.subs.ListForRevalidation(ctx, j.window, j.limit)
	if err != nil {
		return fmt.Errorf("list subscriptions for revalidation: %w", err)
	}

	var errs error
	refreshed := 0
	swept := 0
	for i := range rows {
		outcome, err := j.revalidate(ctx, &rows[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		switch outcome {
		case revalidationRefreshed:
			refreshed++
		case revalidationSwept:
			swept++
		}
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"refreshed":  refreshed,
		"swept":      swept,
	})
	j.logg.Info(reportCtx, "revalidation pass complete")
	return errs
}

type revalidationOutcome int

const (
	revalidationRefreshed revalidationOutcome = iota
	revalidationSwept
	revalidationSkipped
)

func (j *revalidationJob) revalidate(ctx context.Context, sub *models.Subscription) (revalidationOutcome, error) {
	ctx = j.logg.WithUserID(ctx, sub.UserID.String())
	ctx = j.logg.WithPlatform(ctx, sub.Platform.String())

	if sub.Platform == enums.PlatformAndroid {
		res, err := j.play.Validate(ctx, sub.PurchaseToken, sub.ProductID)
		if err != nil {
			return revalidationSkipped, fmt.Errorf("revalidate user %s: %w", sub.UserID, err)
		}
		if res.IsValid {
			if _, err := j.engine.ApplyValidation(ctx, sub.UserID, sub.Platform, res); err != nil {
				return revalidationSkipped, fmt.Errorf("apply revalidation for user %s: %w", sub.UserID, err)
			}
			return revalidationRefreshed, nil
		}
	}

	// Past-expiry records the store never told us about sweep to
	// EXPIRED; anything still inside its paid window is left alone.
	if sub.ExpiryDate.After(j.now().UTC()) {
		return revalidationSkipped, nil
	}
	_, err := j.engine.ApplyNotification(ctx, reconcile.Notification{
		Platform:      sub.Platform,
		PurchaseToken: sub.PurchaseToken,
		Type:          enums.NotificationExpired,
		OccurredAt:    j.now().UTC(),
	})
	if err != nil && !errors.Is(err, reconcile.ErrSuperseded) {
		return revalidationSkipped, fmt.Errorf("sweep expired subscription for user %s: %w", sub.UserID, err)
	}
	return revalidationSwept, nil
}
