package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	"github.com/plateful/plateful-backend/pkg/pagination"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  platform TEXT NOT NULL,
  product_id TEXT NOT NULL,
  purchase_token TEXT NOT NULL,
  status TEXT NOT NULL,
  tier TEXT NOT NULL,
  expiry_date DATETIME NOT NULL,
  auto_renewing INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	logs := `
CREATE TABLE IF NOT EXISTS subscription_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  product_id TEXT NOT NULL,
  old_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  old_tier TEXT NOT NULL,
  new_tier TEXT NOT NULL,
  created_at DATETIME
);`

	require.NoError(t, db.Exec(subscriptions).Error)
	require.NoError(t, db.Exec(logs).Error)
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, repo *Repository) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Platform:      enums.PlatformAndroid,
		ProductID:     "com.app.premium",
		PurchaseToken: "token-1",
		Status:        enums.SubscriptionStatusActive,
		Tier:          enums.TierPremium,
		ExpiryDate:    time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second),
		AutoRenewing:  true,
	}
	require.NoError(t, repo.CreateWithTx(db, sub))
	return sub
}

func TestRepositoryFindByPurchaseToken(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)
	sub := seedSubscription(t, db, repo)

	found, err := repo.FindByPurchaseTokenWithTx(db, enums.PlatformAndroid, "token-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, sub.UserID, found.UserID)

	// Same token on the other platform must not match.
	miss, err := repo.FindByPurchaseTokenWithTx(db, enums.PlatformIOS, "token-1")
	require.NoError(t, err)
	require.Nil(t, miss)

	miss, err = repo.FindByPurchaseTokenWithTx(db, enums.PlatformAndroid, "token-2")
	require.NoError(t, err)
	require.Nil(t, miss)
}

func TestRepositoryCompareAndSwap(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)
	sub := seedSubscription(t, db, repo)

	readAt := sub.UpdatedAt

	next := *sub
	next.Status = enums.SubscriptionStatusCanceled
	next.AutoRenewing = false

	swapped, err := repo.UpdateCompareAndSwapWithTx(db, &next, readAt)
	require.NoError(t, err)
	require.True(t, swapped)
	require.True(t, next.UpdatedAt.After(readAt) || next.UpdatedAt.Equal(readAt))

	// A second swap against the original version must lose.
	stale := *sub
	stale.Status = enums.SubscriptionStatusOnHold
	swapped, err = repo.UpdateCompareAndSwapWithTx(db, &stale, readAt)
	require.NoError(t, err)
	require.False(t, swapped)

	current, err := repo.FindByUserID(context.Background(), sub.UserID)
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionStatusCanceled, current.Status)
	require.False(t, current.AutoRenewing)
}

func TestRepositoryListLogsNewestFirst(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	statuses := []enums.SubscriptionStatus{
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusGracePeriod,
		enums.SubscriptionStatusCanceled,
	}
	for i, status := range statuses {
		entry := &models.SubscriptionLog{
			UserID:    userID,
			Platform:  enums.PlatformAndroid,
			ProductID: "com.app.premium",
			OldStatus: enums.SubscriptionStatusActive,
			NewStatus: status,
			OldTier:   enums.TierPremium,
			NewTier:   enums.TierPremium,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.AppendLogWithTx(db, entry))
	}

	rows, err := repo.ListLogs(context.Background(), userID, nil, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, enums.SubscriptionStatusCanceled, rows[0].NewStatus)
	require.Equal(t, enums.SubscriptionStatusActive, rows[2].NewStatus)

	// Cursor after the newest row should return the remaining two.
	cursor := &pagination.Cursor{CreatedAt: rows[0].CreatedAt, ID: rows[0].ID}
	rest, err := repo.ListLogs(context.Background(), userID, nil, nil, cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, enums.SubscriptionStatusGracePeriod, rest[0].NewStatus)

	// Window filter trims to the middle entry.
	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	windowed, err := repo.ListLogs(context.Background(), userID, &from, &to, nil, 10)
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, enums.SubscriptionStatusGracePeriod, windowed[0].NewStatus)
}

func TestRepositoryListForRevalidation(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)

	nearExpiry := seedSubscription(t, db, repo)
	nearExpiry.ExpiryDate = time.Now().Add(6 * time.Hour).UTC()
	swapped, err := repo.UpdateCompareAndSwapWithTx(db, nearExpiry, nearExpiry.UpdatedAt)
	require.NoError(t, err)
	require.True(t, swapped)

	// Expired long ago, outside the window.
	old := &models.Subscription{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Platform:      enums.PlatformIOS,
		ProductID:     "com.app.basic",
		PurchaseToken: "token-old",
		Status:        enums.SubscriptionStatusActive,
		Tier:          enums.TierBasic,
		ExpiryDate:    time.Now().Add(-90 * 24 * time.Hour).UTC(),
	}
	require.NoError(t, repo.CreateWithTx(db, old))

	rows, err := repo.ListForRevalidation(context.Background(), 24*time.Hour, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, nearExpiry.UserID, rows[0].UserID)
}
