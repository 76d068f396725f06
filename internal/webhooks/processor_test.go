package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/metrics"
)

type memoryStore struct {
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type stubApplier struct {
	err   error
	calls int
}

func (s *stubApplier) ApplyNotification(_ context.Context, _ reconcile.Notification) (*models.Subscription, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Subscription{}, nil
}

type stubBuffer struct {
	events []*models.PendingWebhookEvent
	err    error
}

func (s *stubBuffer) Buffer(_ context.Context, event *models.PendingWebhookEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestProcessor(t *testing.T, store *memoryStore, applier *stubApplier, buffer *stubBuffer) *Processor {
	t.Helper()
	guard, err := NewIdempotencyGuard(store, time.Minute, "test")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	proc, err := NewProcessor(ProcessorParams{
		Guard:       guard,
		Engine:      applier,
		PendingRepo: buffer,
		Metrics:     metrics.NewWebhookMetrics(prometheus.NewRegistry()),
		Logger:      logger.New(logger.Options{Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	return proc
}

func testNotification() reconcile.Notification {
	return reconcile.Notification{
		Platform:      enums.PlatformAndroid,
		PurchaseToken: "tok123",
		Type:          enums.NotificationRenewal,
		OccurredAt:    time.Now(),
	}
}

func TestProcessAppliesOnce(t *testing.T) {
	applier := &stubApplier{}
	proc := newTestProcessor(t, newMemoryStore(), applier, &stubBuffer{})

	if err := proc.Process(context.Background(), "msg-1", testNotification(), nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := proc.Process(context.Background(), "msg-1", testNotification(), nil); err != nil {
		t.Fatalf("duplicate must still acknowledge, got %v", err)
	}
	if applier.calls != 1 {
		t.Fatalf("duplicate must not reach the engine, got %d calls", applier.calls)
	}
}

func TestProcessSupersededAcknowledges(t *testing.T) {
	applier := &stubApplier{err: reconcile.ErrSuperseded}
	proc := newTestProcessor(t, newMemoryStore(), applier, &stubBuffer{})

	if err := proc.Process(context.Background(), "msg-1", testNotification(), nil); err != nil {
		t.Fatalf("superseded events must acknowledge, got %v", err)
	}
}

func TestProcessUnmatchedBuffersAndAcknowledges(t *testing.T) {
	applier := &stubApplier{err: reconcile.ErrUnmatched}
	buffer := &stubBuffer{}
	proc := newTestProcessor(t, newMemoryStore(), applier, buffer)

	raw := json.RawMessage(`{"purchaseToken":"tok123"}`)
	if err := proc.Process(context.Background(), "msg-1", testNotification(), raw); err != nil {
		t.Fatalf("unmatched events must acknowledge, got %v", err)
	}
	if len(buffer.events) != 1 {
		t.Fatalf("expected event to be buffered, got %d", len(buffer.events))
	}
	if buffer.events[0].PurchaseToken != "tok123" {
		t.Fatalf("buffered event should carry the token, got %q", buffer.events[0].PurchaseToken)
	}
}

func TestProcessFailureReleasesMarkForRedelivery(t *testing.T) {
	store := newMemoryStore()
	applier := &stubApplier{err: errors.New("db down")}
	proc := newTestProcessor(t, store, applier, &stubBuffer{})

	if err := proc.Process(context.Background(), "msg-1", testNotification(), nil); err == nil {
		t.Fatalf("expected failure to propagate")
	}

	// Redelivery of the same message must reach the engine again.
	applier.err = nil
	if err := proc.Process(context.Background(), "msg-1", testNotification(), nil); err != nil {
		t.Fatalf("redelivery should succeed, got %v", err)
	}
	if applier.calls != 2 {
		t.Fatalf("expected 2 engine calls, got %d", applier.calls)
	}
}
