package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plateful/plateful-backend/pkg/redis"
)

// IdempotencyGuard deduplicates store notifications by message id before
// any processing happens. A mark is released again when processing fails
// so the platform's redelivery can retry the message.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark returns true when the message id was already seen.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, errors.New("message id is required")
	}
	key := g.store.IdempotencyKey(g.scope, messageID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release drops the mark so a failed message can be redelivered.
func (g *IdempotencyGuard) Release(ctx context.Context, messageID string) error {
	if messageID == "" {
		return errors.New("message id is required")
	}
	key := g.store.IdempotencyKey(g.scope, messageID)
	return g.store.Del(ctx, key)
}
