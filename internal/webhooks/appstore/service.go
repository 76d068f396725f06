package appstorewebhook

import (
	"context"
	"fmt"

	"github.com/plateful/plateful-backend/internal/webhooks"
	"github.com/plateful/plateful-backend/pkg/logger"
)

// Scope namespaces this platform's idempotency keys in redis.
const Scope = "webhook:appstore"

// Service ingests App Store server-to-server notifications.
type Service struct {
	processor    *webhooks.Processor
	sharedSecret string
	logg         *logger.Logger
}

// ServiceParams groups dependencies for the App Store webhook service.
type ServiceParams struct {
	Processor *webhooks.Processor
	// SharedSecret, when set, must match the notification's password
	// field before the payload is trusted.
	SharedSecret string
	Logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Processor == nil {
		return nil, fmt.Errorf("webhook processor required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		processor:    params.Processor,
		sharedSecret: params.SharedSecret,
		logg:         params.Logger,
	}, nil
}

// HandleNotification decodes and applies one server-to-server delivery.
func (s *Service) HandleNotification(ctx context.Context, body []byte) error {
	dec, err := decodeNotification(body, s.sharedSecret)
	if err != nil {
		return err
	}
	if dec.skip {
		s.logg.Info(s.logg.WithField(ctx, "message_id", dec.messageID), "notification type carries no state change, acknowledged")
		return nil
	}
	return s.processor.Process(ctx, dec.messageID, dec.notif, dec.payload)
}
