package subscriptions

import (
	"net/http"
	"strconv"
	"time"

	"github.com/plateful/plateful-backend/api/middleware"
	"github.com/plateful/plateful-backend/api/responses"
	"github.com/plateful/plateful-backend/api/validators"
	"github.com/plateful/plateful-backend/internal/entitlements"
	subsvc "github.com/plateful/plateful-backend/internal/subscriptions"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

type verifyResponse struct {
	Tier         enums.Tier               `json:"tier"`
	Status       enums.SubscriptionStatus `json:"status"`
	IsActive     bool                     `json:"isActive"`
	Platform     enums.Platform           `json:"platform"`
	ProductID    string                   `json:"productId"`
	ExpiryDate   time.Time                `json:"expiryDate"`
	AutoRenewing bool                     `json:"autoRenewing"`
	Limits       entitlements.TierLimits  `json:"limits"`
}

func newVerifyResponse(sub *models.Subscription, now time.Time) verifyResponse {
	active := subsvc.IsEntitled(sub, now)
	tier := sub.Tier
	if !active {
		tier = enums.TierFree
	}
	return verifyResponse{
		Tier:         tier,
		Status:       sub.Status,
		IsActive:     active,
		Platform:     sub.Platform,
		ProductID:    sub.ProductID,
		ExpiryDate:   sub.ExpiryDate,
		AutoRenewing: sub.AutoRenewing,
		Limits:       entitlements.LimitsFor(tier),
	}
}

// VerifyAndroid validates a Play purchase token submitted by the app and
// returns the reconciled subscription state.
func VerifyAndroid(svc *subsvc.VerifyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verify service unavailable"))
			return
		}

		userID, err := middleware.ResolveUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subsvc.VerifyAndroidInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.VerifyAndroid(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newVerifyResponse(sub, time.Now().UTC()))
	}
}

// VerifyIOS validates an App Store receipt submitted by the app and
// returns the reconciled subscription state.
func VerifyIOS(svc *subsvc.VerifyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verify service unavailable"))
			return
		}

		userID, err := middleware.ResolveUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subsvc.VerifyIOSInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.VerifyIOS(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newVerifyResponse(sub, time.Now().UTC()))
	}
}

// Status returns the caller's current tier, status and limits.
func Status(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := middleware.ResolveUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.GetStatus(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// History returns the caller's accepted subscription transitions, newest
// first, keyset-paginated.
func History(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := middleware.ResolveUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := parseHistoryQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.GetHistory(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// Plans serves the static plan catalog. Public; the storefront screens
// render from this before the user signs in.
func Plans() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"plans": entitlements.Plans()})
	}
}

func parseHistoryQuery(r *http.Request) (subsvc.HistoryInput, error) {
	q := r.URL.Query()
	input := subsvc.HistoryInput{Cursor: q.Get("cursor")}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer")
		}
		input.Limit = limit
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "from must be RFC3339")
		}
		input.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "to must be RFC3339")
		}
		input.To = &ts
	}

	return input, nil
}
