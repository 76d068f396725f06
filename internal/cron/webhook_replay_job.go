package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/logger"
)

const (
	defaultReplayLimit  = 200
	defaultReplayMaxAge = 48 * time.Hour
)

type pendingRepository interface {
	List(ctx context.Context, limit int) ([]models.PendingWebhookEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkAttempt(ctx context.Context, id uuid.UUID) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationApplier interface {
	ApplyNotification(ctx context.Context, notif reconcile.Notification) (*models.Subscription, error)
}

// ReplayDecodeFunc re-decodes a buffered payload for its platform.
type ReplayDecodeFunc func(payload []byte) (reconcile.Notification, bool, error)

// WebhookReplayJobParams configures the pending webhook replay job.
type WebhookReplayJobParams struct {
	Logger      *logger.Logger
	PendingRepo pendingRepository
	Engine      notificationApplier
	// Decoders maps each platform's string form to its replay decoder.
	Decoders map[string]ReplayDecodeFunc
	Limit    int
	MaxAge   time.Duration
	Now      func() time.Time
}

// NewWebhookReplayJob builds the job that retries buffered notifications
// whose purchase token matched nothing at delivery time.
func NewWebhookReplayJob(params WebhookReplayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PendingRepo == nil {
		return nil, fmt.Errorf("pending repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	if len(params.Decoders) == 0 {
		return nil, fmt.Errorf("replay decoders required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReplayLimit
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultReplayMaxAge
	}
	return &webhookReplayJob{
		logg:     params.Logger,
		pending:  params.PendingRepo,
		engine:   params.Engine,
		decoders: params.Decoders,
		limit:    limit,
		maxAge:   maxAge,
		now:      now,
	}, nil
}

type webhookReplayJob struct {
	logg     *logger.Logger
	pending  pendingRepository
	engine   notificationApplier
	decoders map[string]ReplayDecodeFunc
	limit    int
	maxAge   time.Duration
	now      func() time.Time
}

func (j *webhookReplayJob) Name() string { return "webhook-replay" }

// Run replays buffered events against the engine. Applied, superseded
// and undecodable events leave the buffer; still-unmatched events stay
// until they age out.
func (j *webhookReplayJob) Run(ctx context.Context) error {
	purged, err := j.pending.PurgeOlderThan(ctx, j.now().UTC().Add(-j.maxAge))
	if err != nil {
		return fmt.Errorf("purge aged pending events: %w", err)
	}

	rows, err := j.pending.List(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list pending events: %w", err)
	}

	var errs error
	applied := 0
	waiting := 0
	for _, row := range rows {
		outcome, err := j.replay(ctx, row)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		switch outcome {
		case replayApplied:
			applied++
		case replayWaiting:
			waiting++
		}
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"purged":  purged,
		"scanned": len(rows),
		"applied": applied,
		"waiting": waiting,
	})
	j.logg.Info(reportCtx, "webhook replay pass complete")
	return errs
}

type replayOutcome int

const (
	replayApplied replayOutcome = iota
	replayWaiting
	replayDropped
)

func (j *webhookReplayJob) replay(ctx context.Context, row models.PendingWebhookEvent) (replayOutcome, error) {
	ctx = j.logg.WithField(ctx, "pending_event_id", row.ID)

	decode, ok := j.decoders[row.Platform.String()]
	if !ok {
		return replayDropped, fmt.Errorf("no replay decoder for platform %s", row.Platform)
	}

	notif, apply, err := decode(row.Payload)
	if err != nil || !apply {
		// A payload that stopped decoding (or decodes to nothing) will
		// never apply; drop it rather than replaying it forever.
		if err != nil {
			j.logg.Error(ctx, "dropping undecodable pending event", err)
		}
		if delErr := j.pending.Delete(ctx, row.ID); delErr != nil {
			return replayDropped, fmt.Errorf("delete pending event %s: %w", row.ID, delErr)
		}
		return replayDropped, nil
	}

	_, err = j.engine.ApplyNotification(ctx, notif)
	switch {
	case err == nil, errors.Is(err, reconcile.ErrSuperseded):
		if delErr := j.pending.Delete(ctx, row.ID); delErr != nil {
			return replayApplied, fmt.Errorf("delete applied pending event %s: %w", row.ID, delErr)
		}
		return replayApplied, nil
	case errors.Is(err, reconcile.ErrUnmatched):
		if markErr := j.pending.MarkAttempt(ctx, row.ID); markErr != nil {
			return replayWaiting, fmt.Errorf("mark pending event %s: %w", row.ID, markErr)
		}
		return replayWaiting, nil
	default:
		return replayWaiting, fmt.Errorf("replay pending event %s: %w", row.ID, err)
	}
}
