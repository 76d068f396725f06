package usage

import (
	"net/http"

	"github.com/plateful/plateful-backend/api/middleware"
	"github.com/plateful/plateful-backend/api/responses"
	"github.com/plateful/plateful-backend/api/validators"
	usagesvc "github.com/plateful/plateful-backend/internal/usage"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

type recordUsageRequest struct {
	Feature string `json:"feature" validate:"required"`
}

// Record consumes one unit of a tier-limited feature for the caller.
// Over-limit requests fail; the counter only moves when the request is
// allowed.
func Record(svc usagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		userID, err := middleware.ResolveUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordUsageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		feature, err := enums.ParseFeature(payload.Feature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown feature"))
			return
		}

		dto, err := svc.RecordUsage(r.Context(), userID, feature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}

// Get returns the caller's usage counters and limits for the current
// billing period.
func Get(svc usagesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		userID, err := middleware.ResolveUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.GetUsage(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}
