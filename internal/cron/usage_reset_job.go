package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/logger"
)

const defaultUsageResetLimit = 500

type usageRepository interface {
	ListStale(ctx context.Context, periodStart time.Time, limit int) ([]models.FeatureUsage, error)
	ResetWithHistory(ctx context.Context, row models.FeatureUsage, periodStart time.Time) error
}

// UsageResetJobParams configures the usage reset cron job.
type UsageResetJobParams struct {
	Logger    *logger.Logger
	UsageRepo usageRepository
	Limit     int
	Now       func() time.Time
}

// NewUsageResetJob builds the job that rolls feature counters over at
// each billing period boundary.
func NewUsageResetJob(params UsageResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.UsageRepo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultUsageResetLimit
	}
	return &usageResetJob{
		logg:  params.Logger,
		repo:  params.UsageRepo,
		limit: limit,
		now:   now,
	}, nil
}

type usageResetJob struct {
	logg  *logger.Logger
	repo  usageRepository
	limit int
	now   func() time.Time
}

func (j *usageResetJob) Name() string { return "usage-reset" }

// Run finds counters whose last reset predates the current billing
// period and rolls each one over: final counts go to history, live
// counters go to zero. One user failing does not stop the rest.
func (j *usageResetJob) Run(ctx context.Context) error {
	periodStart := currentPeriodStart(j.now())

	rows, err := j.repo.ListStale(ctx, periodStart, j.limit)
	if err != nil {
		return fmt.Errorf("list stale usage rows: %w", err)
	}

	var errs error
	reset := 0
	for _, row := range rows {
		if err := j.repo.ResetWithHistory(ctx, row, periodStart); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reset usage for user %s: %w", row.UserID, err))
			continue
		}
		reset++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"reset":      reset,
	})
	j.logg.Info(reportCtx, "usage reset pass complete")
	return errs
}

// currentPeriodStart returns the first instant of the current calendar
// month in UTC, the billing period boundary for usage counters.
func currentPeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
