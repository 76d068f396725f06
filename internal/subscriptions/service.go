package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/internal/entitlements"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/pagination"
)

type statusRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListLogs(ctx context.Context, userID uuid.UUID, from, to *time.Time, cursor *pagination.Cursor, limit int) ([]models.SubscriptionLog, error)
}

// Service exposes the read side of a user's subscription state.
type Service interface {
	GetStatus(ctx context.Context, userID uuid.UUID) (*StatusDTO, error)
	GetHistory(ctx context.Context, userID uuid.UUID, input HistoryInput) (*HistoryPageDTO, error)
	ResolveTier(ctx context.Context, userID uuid.UUID) (enums.Tier, error)
}

// ServiceParams groups dependencies for the subscription read service.
type ServiceParams struct {
	Repo statusRepository
}

// HistoryInput captures the filter and paging arguments for GetHistory.
type HistoryInput struct {
	From   *time.Time
	To     *time.Time
	Cursor string
	Limit  int
}

type service struct {
	repo statusRepository
}

// NewService builds the subscription read service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	return &service{repo: params.Repo}, nil
}

// GetStatus resolves the user's current tier, status and limits. Users
// with no subscription row are free-tier by default.
func (s *service) GetStatus(ctx context.Context, userID uuid.UUID) (*StatusDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return &StatusDTO{
			Tier:   enums.TierFree,
			Status: enums.SubscriptionStatusExpired,
			Limits: entitlements.LimitsFor(enums.TierFree),
		}, nil
	}

	active := IsEntitled(sub, time.Now().UTC())
	tier := sub.Tier
	if !active {
		tier = enums.TierFree
	}

	expiry := sub.ExpiryDate
	platform := sub.Platform
	return &StatusDTO{
		Tier:         tier,
		Status:       sub.Status,
		IsActive:     active,
		Platform:     &platform,
		ProductID:    sub.ProductID,
		ExpiryDate:   &expiry,
		AutoRenewing: sub.AutoRenewing,
		Limits:       entitlements.LimitsFor(tier),
	}, nil
}

// ResolveTier returns the tier whose limits currently apply to the
// user, free tier when nothing is active.
func (s *service) ResolveTier(ctx context.Context, userID uuid.UUID) (enums.Tier, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return "", err
	}
	return status.Tier, nil
}

// GetHistory returns one page of the user's transition log.
func (s *service) GetHistory(ctx context.Context, userID uuid.UUID, input HistoryInput) (*HistoryPageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.From != nil && input.To != nil && input.To.Before(*input.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "'to' must not precede 'from'")
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.ListLogs(ctx, userID, input.From, input.To, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription history")
	}

	page := &HistoryPageDTO{Entries: make([]HistoryEntryDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Entries = append(page.Entries, historyEntryFromModel(row))
	}
	return page, nil
}

// IsEntitled reports whether the subscription grants paid access at the
// given instant. CANCELED and GRACE_PERIOD keep access until the stored
// expiry passes; ON_HOLD never grants access regardless of expiry.
func IsEntitled(sub *models.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	switch sub.Status {
	case enums.SubscriptionStatusActive,
		enums.SubscriptionStatusCanceled,
		enums.SubscriptionStatusGracePeriod:
		return sub.ExpiryDate.After(now)
	default:
		return false
	}
}
