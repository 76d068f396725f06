package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plateful/plateful-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends an event inside the caller's transaction so the event
// commits or rolls back together with the state change that produced it.
func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func (r *Repository) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(id uuid.UUID) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now(),
		}).Error
}

func (r *Repository) MarkFailed(id uuid.UUID, cause error) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MoveToDLQ records a terminal failure and marks the event published so
// the publisher stops retrying it.
func (r *Repository) MoveToDLQ(event models.OutboxEvent, cause error) error {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:      event.ID,
		EventType:    event.EventType,
		UserID:       event.UserID,
		Payload:      event.Payload,
		ErrorMessage: &msg,
		AttemptCount: event.AttemptCount,
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.OutboxEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]any{
				"published_at": time.Now(),
				"last_error":   msg,
			}).Error
	})
}
