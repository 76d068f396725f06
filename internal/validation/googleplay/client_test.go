package googleplay

import (
	"context"
	"testing"
	"time"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"

	"github.com/plateful/plateful-backend/pkg/config"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

type stubGetter struct {
	purchase *androidpublisher.SubscriptionPurchase
	err      error
	calls    int
}

func (s *stubGetter) Get(ctx context.Context, packageName, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error) {
	s.calls++
	return s.purchase, s.err
}

func paymentState(v int64) *int64 { return &v }

func stubClient(api subscriptionGetter) *Client {
	return NewClientWithAPI(api, config.GooglePlayConfig{
		PackageName: "com.plateful.app",
		MaxAttempts: 2,
	}, nil)
}

func TestValidatePaymentStates(t *testing.T) {
	expiryMS := time.Now().Add(30 * 24 * time.Hour).UnixMilli()

	cases := []struct {
		name      string
		state     *int64
		wantValid bool
	}{
		{"received", paymentState(paymentStateReceived), true},
		{"free trial", paymentState(paymentStateFreeTrial), true},
		{"pending", paymentState(paymentStatePending), false},
		{"deferred", paymentState(paymentStateDeferred), false},
		// The API omits payment_state entirely on expired and revoked
		// purchases.
		{"absent", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := stubClient(&stubGetter{purchase: &androidpublisher.SubscriptionPurchase{
				PaymentState:     tc.state,
				ExpiryTimeMillis: expiryMS,
				AutoRenewing:     true,
			}})

			res, err := client.Validate(context.Background(), "token-1", "com.app.premium")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.IsValid != tc.wantValid {
				t.Fatalf("IsValid = %v, want %v", res.IsValid, tc.wantValid)
			}
			if !res.ExpiryDate.Equal(time.UnixMilli(expiryMS).UTC()) {
				t.Fatalf("unexpected expiry %s", res.ExpiryDate)
			}
			if !res.AutoRenewing {
				t.Fatalf("expected auto renew passthrough")
			}
		})
	}
}

func TestValidateRejectedToken(t *testing.T) {
	api := &stubGetter{err: &googleapi.Error{Code: 400, Message: "invalid token"}}

	_, err := stubClient(api).Validate(context.Background(), "bad-token", "com.app.premium")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if api.calls != 1 {
		t.Fatalf("a rejected token must not be retried, got %d calls", api.calls)
	}
}

func TestValidateServerErrorBecomesDependency(t *testing.T) {
	api := &stubGetter{err: &googleapi.Error{Code: 503, Message: "backend unavailable"}}

	_, err := stubClient(api).Validate(context.Background(), "token-1", "com.app.premium")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected a dependency error, got %v", err)
	}
	if api.calls != 2 {
		t.Fatalf("expected the server error to be retried, got %d calls", api.calls)
	}
}

func TestValidateRequiresTokenAndProduct(t *testing.T) {
	client := stubClient(&stubGetter{})

	if _, err := client.Validate(context.Background(), "", "com.app.premium"); pkgerrors.As(err) == nil {
		t.Fatalf("expected a validation error for a missing token, got %v", err)
	}
	if _, err := client.Validate(context.Background(), "token-1", ""); pkgerrors.As(err) == nil {
		t.Fatalf("expected a validation error for a missing product, got %v", err)
	}
}
