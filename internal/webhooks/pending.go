package webhooks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plateful/plateful-backend/pkg/db/models"
)

// PendingRepository buffers decoded notifications whose purchase token
// matched no subscription yet, so they can be replayed once the
// synchronous verification path has created the record.
type PendingRepository struct {
	db *gorm.DB
}

func NewPendingRepository(db *gorm.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Buffer stores an unmatched event for later replay.
func (r *PendingRepository) Buffer(ctx context.Context, event *models.PendingWebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// List returns buffered events oldest first.
func (r *PendingRepository) List(ctx context.Context, limit int) ([]models.PendingWebhookEvent, error) {
	var rows []models.PendingWebhookEvent
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Delete removes a buffered event once it has been applied or discarded.
func (r *PendingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.PendingWebhookEvent{}, "id = ?", id).Error
}

// MarkAttempt bumps the replay counter for an event that still matched
// nothing.
func (r *PendingRepository) MarkAttempt(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingWebhookEvent{}).
		Where("id = ?", id).
		Update("attempt_count", gorm.Expr("attempt_count + 1")).Error
}

// PurgeOlderThan discards events that have waited past the bounded delay.
// Returns how many rows were dropped.
func (r *PendingRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.PendingWebhookEvent{})
	return res.RowsAffected, res.Error
}
