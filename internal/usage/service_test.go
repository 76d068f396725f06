package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/internal/entitlements"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

type stubUsageRepo struct {
	row        models.FeatureUsage
	lastLimit  int
	increments int
	denied     bool
}

func (s *stubUsageRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.FeatureUsage, error) {
	s.row.UserID = userID
	if s.row.LastReset.IsZero() {
		s.row.LastReset = time.Now().UTC()
	}
	clone := s.row
	return &clone, nil
}

func (s *stubUsageRepo) IncrementWithinLimit(_ context.Context, _ uuid.UUID, feature enums.Feature, limit int) (bool, error) {
	s.lastLimit = limit
	if s.denied {
		return false, nil
	}
	s.increments++
	switch feature {
	case enums.FeatureRecipes:
		s.row.RecipesCreated++
	case enums.FeatureMealPlans:
		s.row.MealPlansCreated++
	case enums.FeaturePriceAlerts:
		s.row.PriceAlertsSet++
	case enums.FeatureCollections:
		s.row.CollectionsCreated++
	}
	return true, nil
}

type fixedTier struct {
	tier enums.Tier
}

func (f fixedTier) ResolveTier(_ context.Context, _ uuid.UUID) (enums.Tier, error) {
	return f.tier, nil
}

func TestRecordUsageIncrementsUnderLimit(t *testing.T) {
	repo := &stubUsageRepo{}
	svc, err := NewService(ServiceParams{Repo: repo, Tiers: fixedTier{tier: enums.TierBasic}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dto, err := svc.RecordUsage(context.Background(), uuid.New(), enums.FeatureRecipes)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if dto.RecipesCreated != 1 {
		t.Fatalf("expected counter at 1, got %d", dto.RecipesCreated)
	}
	if repo.lastLimit != entitlements.LimitsFor(enums.TierBasic).Limit(enums.FeatureRecipes) {
		t.Fatalf("increment should carry the tier's cap, got %d", repo.lastLimit)
	}
}

func TestRecordUsageRejectsAtLimit(t *testing.T) {
	repo := &stubUsageRepo{denied: true}
	svc, _ := NewService(ServiceParams{Repo: repo, Tiers: fixedTier{tier: enums.TierFree}})

	_, err := svc.RecordUsage(context.Background(), uuid.New(), enums.FeatureMealPlans)
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeLimitExceeded {
		t.Fatalf("expected limit exceeded, got %v", err)
	}
}

func TestRecordUsageUnlimitedTierNeverRejects(t *testing.T) {
	repo := &stubUsageRepo{row: models.FeatureUsage{RecipesCreated: 100000}}
	svc, _ := NewService(ServiceParams{Repo: repo, Tiers: fixedTier{tier: enums.TierProfessional}})

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordUsage(context.Background(), uuid.New(), enums.FeatureRecipes); err != nil {
			t.Fatalf("unlimited tier must never fail a usage check, got %v", err)
		}
	}
	if repo.lastLimit != entitlements.Unlimited {
		t.Fatalf("expected unlimited cap, got %d", repo.lastLimit)
	}
}

func TestRecordUsageRejectsUnknownFeature(t *testing.T) {
	svc, _ := NewService(ServiceParams{Repo: &stubUsageRepo{}, Tiers: fixedTier{tier: enums.TierFree}})

	_, err := svc.RecordUsage(context.Background(), uuid.New(), enums.Feature("time_travel"))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetUsageReportsCountersAndLimits(t *testing.T) {
	repo := &stubUsageRepo{row: models.FeatureUsage{
		RecipesCreated:   3,
		MealPlansCreated: 1,
	}}
	svc, _ := NewService(ServiceParams{Repo: repo, Tiers: fixedTier{tier: enums.TierPremium}})

	dto, err := svc.GetUsage(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if dto.RecipesCreated != 3 || dto.MealPlansCreated != 1 {
		t.Fatalf("unexpected counters: %+v", dto)
	}
	if dto.Limits != entitlements.LimitsFor(enums.TierPremium) {
		t.Fatalf("expected premium limits")
	}
}
