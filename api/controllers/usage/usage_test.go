package usage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/api/middleware"
	"github.com/plateful/plateful-backend/internal/entitlements"
	usagesvc "github.com/plateful/plateful-backend/internal/usage"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubService struct {
	dto     *usagesvc.UsageDTO
	err     error
	feature enums.Feature
}

func (s *stubService) RecordUsage(ctx context.Context, userID uuid.UUID, feature enums.Feature) (*usagesvc.UsageDTO, error) {
	s.feature = feature
	return s.dto, s.err
}

func (s *stubService) GetUsage(ctx context.Context, userID uuid.UUID) (*usagesvc.UsageDTO, error) {
	return s.dto, s.err
}

func authedRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	return req.WithContext(ctx)
}

func TestRecordParsesFeature(t *testing.T) {
	svc := &stubService{dto: &usagesvc.UsageDTO{
		Tier:           enums.TierBasic,
		RecipesCreated: 3,
		Limits:         entitlements.LimitsFor(enums.TierBasic),
	}}

	rec := httptest.NewRecorder()
	Record(svc, testLogger())(rec, authedRequest(http.MethodPost, "/api/v1/usage", `{"feature":"recipes"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.feature != enums.FeatureRecipes {
		t.Fatalf("feature = %q", svc.feature)
	}

	var envelope struct {
		Data usagesvc.UsageDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.RecipesCreated != 3 {
		t.Fatalf("payload = %+v", envelope.Data)
	}
}

func TestRecordRejectsUnknownFeature(t *testing.T) {
	svc := &stubService{}

	rec := httptest.NewRecorder()
	Record(svc, testLogger())(rec, authedRequest(http.MethodPost, "/api/v1/usage", `{"feature":"timelines"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRecordSurfacesLimitExceeded(t *testing.T) {
	svc := &stubService{err: pkgerrors.New(pkgerrors.CodeLimitExceeded, "recipes limit reached").
		WithDetails(map[string]any{"feature": "recipes", "limit": 5})}

	rec := httptest.NewRecorder()
	Record(svc, testLogger())(rec, authedRequest(http.MethodPost, "/api/v1/usage", `{"feature":"recipes"}`))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeLimitExceeded) {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestGetRequiresUserContext(t *testing.T) {
	svc := &stubService{}

	rec := httptest.NewRecorder()
	Get(svc, testLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
