package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/plateful/plateful-backend/api/responses"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

type GooglePlayWebhookService interface {
	HandlePush(ctx context.Context, body []byte) error
}

// GooglePlayWebhook receives RTDN pushes from the Pub/Sub subscription.
// Validation failures return 400 so Pub/Sub drops the message; transient
// failures return 5xx so it redelivers.
func GooglePlayWebhook(svc GooglePlayWebhookService, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.HandlePush(ctx, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
