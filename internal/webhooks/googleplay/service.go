package googleplaywebhook

import (
	"context"
	"fmt"

	"github.com/plateful/plateful-backend/internal/webhooks"
	"github.com/plateful/plateful-backend/pkg/logger"
)

// Scope namespaces this platform's idempotency keys in redis.
const Scope = "webhook:googleplay"

// Service ingests Play real-time developer notifications delivered as
// Pub/Sub push messages.
type Service struct {
	processor *webhooks.Processor
	logg      *logger.Logger
}

// ServiceParams groups dependencies for the Play webhook service.
type ServiceParams struct {
	Processor *webhooks.Processor
	Logger    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Processor == nil {
		return nil, fmt.Errorf("webhook processor required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		processor: params.Processor,
		logg:      params.Logger,
	}, nil
}

// HandlePush decodes and applies one push delivery. A nil return means
// the message must be acknowledged; validation-coded errors mean the
// payload is malformed and unfixable.
func (s *Service) HandlePush(ctx context.Context, body []byte) error {
	dec, err := decodePush(body)
	if err != nil {
		return err
	}
	if dec.skip {
		s.logg.Info(s.logg.WithField(ctx, "message_id", dec.messageID), "non-subscription notification acknowledged")
		return nil
	}
	return s.processor.Process(ctx, dec.messageID, dec.notif, dec.payload)
}
