package googleplay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/config"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

// Payment states reported by the subscriptions resource.
const (
	paymentStatePending   int64 = 0
	paymentStateReceived  int64 = 1
	paymentStateFreeTrial int64 = 2
	paymentStateDeferred  int64 = 3
)

type subscriptionGetter interface {
	Get(ctx context.Context, packageName, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error)
}

// Client validates Android purchase tokens against the Google Play
// Developer API.
type Client struct {
	api         subscriptionGetter
	packageName string
	timeout     time.Duration
	maxAttempts int
	logg        *logger.Logger
}

type publisherAPI struct {
	svc *androidpublisher.Service
}

func (p publisherAPI) Get(ctx context.Context, packageName, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error) {
	return p.svc.Purchases.Subscriptions.Get(packageName, subscriptionID, token).Context(ctx).Do()
}

// NewClient builds the validator using the configured service account
// credentials.
func NewClient(ctx context.Context, cfg config.GooglePlayConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.PackageName) == "" {
		return nil, errors.New("google play package name is required")
	}

	opts := []option.ClientOption{option.WithScopes(androidpublisher.AndroidpublisherScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating androidpublisher service: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "google play client initialized")
	}

	return &Client{
		api:         publisherAPI{svc: svc},
		packageName: cfg.PackageName,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		logg:        logg,
	}, nil
}

// NewClientWithAPI wires a custom API implementation; used by tests.
func NewClientWithAPI(api subscriptionGetter, cfg config.GooglePlayConfig, logg *logger.Logger) *Client {
	return &Client{
		api:         api,
		packageName: cfg.PackageName,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		logg:        logg,
	}
}

// Validate resolves a purchase token into a normalized validation
// result. Transient API failures are retried with bounded backoff; a
// final failure is a dependency error, never a false "invalid".
func (c *Client) Validate(ctx context.Context, purchaseToken, productID string) (*validation.Result, error) {
	if purchaseToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase token is required")
	}
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var purchase *androidpublisher.SubscriptionPurchase
	err := validation.Retry(ctx, c.maxAttempts, func(ctx context.Context) error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		got, err := c.api.Get(callCtx, c.packageName, productID, purchaseToken)
		if err != nil {
			return classifyError(err)
		}
		purchase = got
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "google play subscription lookup failed")
	}

	result := &validation.Result{
		IsValid:       paymentReceived(purchase.PaymentState),
		ProductID:     productID,
		PurchaseToken: purchaseToken,
		ExpiryDate:    time.UnixMilli(purchase.ExpiryTimeMillis).UTC(),
		AutoRenewing:  purchase.AutoRenewing,
	}

	if c.logg != nil {
		fields := map[string]any{
			"product_id":    productID,
			"payment_state": purchase.PaymentState,
			"is_valid":      result.IsValid,
		}
		c.logg.Info(c.logg.WithFields(ctx, fields), "google play validation complete")
	}

	return result, nil
}

// paymentReceived reports whether the purchase is paid up. The API
// omits PaymentState on expired and revoked purchases, so a nil pointer
// never counts as payable.
func paymentReceived(state *int64) bool {
	if state == nil {
		return false
	}
	return *state == paymentStateReceived || *state == paymentStateFreeTrial
}

// classifyError separates "the platform said no" from "the platform was
// unreachable". Client errors mean the token is bad; server and
// transport errors are retried.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 || apiErr.Code == 429 {
			return validation.Transient(err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "google play rejected the purchase token")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return validation.Transient(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return validation.Transient(err)
	}
	return validation.Transient(err)
}
