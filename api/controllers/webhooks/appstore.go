package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/plateful/plateful-backend/api/responses"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

type AppStoreWebhookService interface {
	HandleNotification(ctx context.Context, body []byte) error
}

// AppStoreWebhook receives server notifications from Apple. Shared secret
// mismatches return 401; transient failures return 5xx so Apple retries.
func AppStoreWebhook(svc AppStoreWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := svc.HandleNotification(ctx, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
