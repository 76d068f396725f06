package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	"github.com/plateful/plateful-backend/pkg/pagination"
)

// Repository exposes subscription persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUserID returns the user's subscription row, or nil when the user
// has never purchased.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return findOne(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

// FindByUserIDWithTx is the transactional variant of FindByUserID.
func (r *Repository) FindByUserIDWithTx(tx *gorm.DB, userID uuid.UUID) (*models.Subscription, error) {
	return findOne(tx.Where("user_id = ?", userID))
}

// FindByPurchaseTokenWithTx matches an inbound store notification to a
// subscription by purchase token. Returns nil when no row matches.
func (r *Repository) FindByPurchaseTokenWithTx(tx *gorm.DB, platform enums.Platform, token string) (*models.Subscription, error) {
	return findOne(tx.Where("platform = ? AND purchase_token = ?", platform, token))
}

func findOne(q *gorm.DB) (*models.Subscription, error) {
	var sub models.Subscription
	err := q.First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateWithTx persists a brand-new subscription row.
func (r *Repository) CreateWithTx(tx *gorm.DB, sub *models.Subscription) error {
	now := time.Now().UTC()
	sub.UpdatedAt = now
	return tx.Create(sub).Error
}

// UpdateCompareAndSwapWithTx writes the new state only if the row's
// updated_at still equals the value the caller read. When zero rows
// match the row has moved on and the caller must re-read and re-decide.
func (r *Repository) UpdateCompareAndSwapWithTx(tx *gorm.DB, sub *models.Subscription, readAt time.Time) (bool, error) {
	newVersion := time.Now().UTC()
	res := tx.Model(&models.Subscription{}).
		Where("id = ? AND updated_at = ?", sub.ID, readAt).
		Updates(map[string]any{
			"platform":       sub.Platform,
			"product_id":     sub.ProductID,
			"purchase_token": sub.PurchaseToken,
			"status":         sub.Status,
			"tier":           sub.Tier,
			"expiry_date":    sub.ExpiryDate,
			"auto_renewing":  sub.AutoRenewing,
			"updated_at":     newVersion,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	sub.UpdatedAt = newVersion
	return true, nil
}

// AppendLogWithTx records one accepted state transition. Log rows are
// append-only and share the subscription update's transaction.
func (r *Repository) AppendLogWithTx(tx *gorm.DB, entry *models.SubscriptionLog) error {
	return tx.Create(entry).Error
}

// ListLogs returns the user's transition history newest first, filtered to
// the optional [from, to] window, with cursor pagination.
func (r *Repository) ListLogs(ctx context.Context, userID uuid.UUID, from, to *time.Time, cursor *pagination.Cursor, limit int) ([]models.SubscriptionLog, error) {
	q := r.db.WithContext(ctx).
		Model(&models.SubscriptionLog{}).
		Where("user_id = ?", userID)

	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.SubscriptionLog
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

// ListForRevalidation returns subscriptions whose expiry falls inside the
// lookahead window and which still claim an entitled status. Rows closest
// to expiry come first so a truncated batch covers the most urgent ones.
func (r *Repository) ListForRevalidation(ctx context.Context, window time.Duration, limit int) ([]models.Subscription, error) {
	now := time.Now().UTC()
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.SubscriptionStatus{
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusCanceled,
			enums.SubscriptionStatusGracePeriod,
		}).
		Where("expiry_date BETWEEN ? AND ?", now.Add(-window), now.Add(window)).
		Order("expiry_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
