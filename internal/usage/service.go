package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/internal/entitlements"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

type usageRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.FeatureUsage, error)
	IncrementWithinLimit(ctx context.Context, userID uuid.UUID, feature enums.Feature, limit int) (bool, error)
}

type tierResolver interface {
	ResolveTier(ctx context.Context, userID uuid.UUID) (enums.Tier, error)
}

// Service enforces per-tier feature limits and tracks consumption.
type Service interface {
	RecordUsage(ctx context.Context, userID uuid.UUID, feature enums.Feature) (*UsageDTO, error)
	GetUsage(ctx context.Context, userID uuid.UUID) (*UsageDTO, error)
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Repo  usageRepository
	Tiers tierResolver
}

type service struct {
	repo  usageRepository
	tiers tierResolver
}

// UsageDTO reports the user's current counters alongside their caps.
type UsageDTO struct {
	Tier               enums.Tier              `json:"tier"`
	RecipesCreated     int                     `json:"recipesCreated"`
	MealPlansCreated   int                     `json:"mealPlansCreated"`
	PriceAlertsSet     int                     `json:"priceAlertsSet"`
	CollectionsCreated int                     `json:"collectionsCreated"`
	Limits             entitlements.TierLimits `json:"limits"`
}

// NewService builds the usage tracking service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repo required")
	}
	if params.Tiers == nil {
		return nil, fmt.Errorf("tier resolver required")
	}
	return &service{
		repo:  params.Repo,
		tiers: params.Tiers,
	}, nil
}

// RecordUsage counts one use of the feature, rejecting it when the
// user's tier cap is already reached. A cap of -1 never rejects.
func (s *service) RecordUsage(ctx context.Context, userID uuid.UUID, feature enums.Feature) (*UsageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !feature.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown feature %q", feature))
	}

	tier, err := s.tiers.ResolveTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := entitlements.LimitsFor(tier).Limit(feature)

	// Row must exist before the conditional increment can match it.
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading usage counters")
	}

	allowed, err := s.repo.IncrementWithinLimit(ctx, userID, feature, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing usage counter")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeLimitExceeded, fmt.Sprintf("%s limit reached for the %s tier", feature, tier)).
			WithDetails(map[string]any{
				"feature": feature,
				"limit":   limit,
			})
	}

	return s.GetUsage(ctx, userID)
}

// GetUsage returns the user's current counters and caps.
func (s *service) GetUsage(ctx context.Context, userID uuid.UUID) (*UsageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	tier, err := s.tiers.ResolveTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading usage counters")
	}

	return &UsageDTO{
		Tier:               tier,
		RecipesCreated:     row.RecipesCreated,
		MealPlansCreated:   row.MealPlansCreated,
		PriceAlertsSet:     row.PriceAlertsSet,
		CollectionsCreated: row.CollectionsCreated,
		Limits:             entitlements.LimitsFor(tier),
	}, nil
}
