package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/metrics"
)

type notificationApplier interface {
	ApplyNotification(ctx context.Context, notif reconcile.Notification) (*models.Subscription, error)
}

type pendingBuffer interface {
	Buffer(ctx context.Context, event *models.PendingWebhookEvent) error
}

// Processor runs the platform-independent half of webhook ingestion:
// dedup, apply, and the terminal outcomes that still acknowledge the
// message (duplicate, superseded, unmatched-and-buffered).
type Processor struct {
	guard   *IdempotencyGuard
	engine  notificationApplier
	pending pendingBuffer
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
}

// ProcessorParams groups dependencies for the webhook processor.
type ProcessorParams struct {
	Guard       *IdempotencyGuard
	Engine      notificationApplier
	PendingRepo pendingBuffer
	Metrics     *metrics.WebhookMetrics
	Logger      *logger.Logger
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	if params.PendingRepo == nil {
		return nil, fmt.Errorf("pending repo required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("webhook metrics required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Processor{
		guard:   params.Guard,
		engine:  params.Engine,
		pending: params.PendingRepo,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Process applies one decoded notification. A nil return means the
// message reached a terminal outcome and must be acknowledged; an error
// means processing failed and the platform should redeliver.
func (p *Processor) Process(ctx context.Context, messageID string, notif reconcile.Notification, raw json.RawMessage) error {
	platform := notif.Platform.String()
	p.metrics.IncReceived(platform)
	ctx = p.logg.WithPlatform(ctx, platform)
	ctx = p.logg.WithField(ctx, "message_id", messageID)

	seen, err := p.guard.CheckAndMark(ctx, messageID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		p.metrics.IncDuplicate(platform)
		p.logg.Info(ctx, "duplicate notification skipped")
		return nil
	}

	_, err = p.engine.ApplyNotification(ctx, notif)
	switch {
	case err == nil:
		p.metrics.IncApplied(platform)
		return nil
	case errors.Is(err, reconcile.ErrSuperseded):
		p.metrics.IncSuperseded(platform)
		p.logg.Info(ctx, "notification superseded by a newer transition")
		return nil
	case errors.Is(err, reconcile.ErrUnmatched):
		p.metrics.IncUnmatched(platform)
		if bufErr := p.pending.Buffer(ctx, &models.PendingWebhookEvent{
			Platform:      notif.Platform,
			PurchaseToken: notif.PurchaseToken,
			Payload:       raw,
		}); bufErr != nil {
			p.releaseMark(ctx, messageID)
			return fmt.Errorf("buffering unmatched notification: %w", bufErr)
		}
		p.logg.Info(ctx, "unmatched notification buffered for replay")
		return nil
	default:
		p.releaseMark(ctx, messageID)
		return err
	}
}

func (p *Processor) releaseMark(ctx context.Context, messageID string) {
	if err := p.guard.Release(ctx, messageID); err != nil {
		p.logg.Error(ctx, "releasing idempotency mark", err)
	}
}
