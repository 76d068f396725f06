package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/config"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

// Client posts receipts to the App Store verifyReceipt endpoint and
// normalizes the latest transaction into a validation result.
type Client struct {
	httpClient    *http.Client
	productionURL string
	sandboxURL    string
	sharedSecret  string
	maxAttempts   int
	logg          *logger.Logger
}

// NewClient builds the iOS receipt validator.
func NewClient(cfg config.AppStoreConfig, logg *logger.Logger) (*Client, error) {
	if cfg.ProductionURL == "" || cfg.SandboxURL == "" {
		return nil, errors.New("app store verification urls are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		productionURL: cfg.ProductionURL,
		sandboxURL:    cfg.SandboxURL,
		sharedSecret:  cfg.SharedSecret,
		maxAttempts:   cfg.MaxAttempts,
		logg:          logg,
	}, nil
}

// Validate verifies a base64 receipt. A 21007 response from the
// production endpoint is a routing correction, not an error: the
// receipt is re-verified once against the sandbox endpoint and that
// outcome is returned.
func (c *Client) Validate(ctx context.Context, receipt string) (*validation.Result, error) {
	if receipt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt is required")
	}

	resp, err := c.verify(ctx, c.productionURL, receipt)
	if err != nil {
		return nil, err
	}
	if resp.Status == statusSandboxReceipt {
		if c.logg != nil {
			c.logg.Info(ctx, "sandbox receipt posted to production, re-verifying against sandbox")
		}
		resp, err = c.verify(ctx, c.sandboxURL, receipt)
		if err != nil {
			return nil, err
		}
	}

	switch resp.Status {
	case statusOK, statusSubscriptionExpired:
		return resultFromResponse(resp)
	case statusServerUnavail:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "app store receipt server unavailable")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("app store rejected the receipt (status %d)", resp.Status))
	}
}

func (c *Client) verify(ctx context.Context, url, receipt string) (*verifyResponse, error) {
	body, err := json.Marshal(verifyRequest{ReceiptData: receipt, Password: c.sharedSecret})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode verify request")
	}

	var parsed verifyResponse
	err = validation.Retry(ctx, c.maxAttempts, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
				return validation.Transient(err)
			}
			return validation.Transient(err)
		}
		defer res.Body.Close()

		if res.StatusCode >= 500 {
			return validation.Transient(fmt.Errorf("verify receipt: http %d", res.StatusCode))
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("verify receipt: http %d", res.StatusCode)
		}
		return json.NewDecoder(res.Body).Decode(&parsed)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "app store verification failed")
	}
	return &parsed, nil
}

// resultFromResponse normalizes the newest transaction in the receipt
// history. The App Store does not sort latest_receipt_info, so the
// entry with the greatest expiry wins.
func resultFromResponse(resp *verifyResponse) (*validation.Result, error) {
	latest, err := latestTransaction(resp.LatestReceiptInfo)
	if err != nil {
		return nil, err
	}

	expiresMS, err := strconv.ParseInt(latest.ExpiresDateMS, 10, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse receipt expiry")
	}

	autoRenewing := false
	for _, renewal := range resp.PendingRenewalInfo {
		if renewal.ProductID == latest.ProductID && renewal.AutoRenewStatus == "1" {
			autoRenewing = true
			break
		}
	}

	// IsValid reflects that the purchase itself verified; whether it is
	// current is decided downstream by comparing the expiry against now.
	expiry := time.UnixMilli(expiresMS).UTC()
	return &validation.Result{
		IsValid:       resp.Status == statusOK || resp.Status == statusSubscriptionExpired,
		ProductID:     latest.ProductID,
		PurchaseToken: latest.OriginalTransactionID,
		ExpiryDate:    expiry,
		AutoRenewing:  autoRenewing,
	}, nil
}

func latestTransaction(history []receiptInfo) (*receiptInfo, error) {
	if len(history) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt has no transactions")
	}
	best := 0
	bestExpiry := int64(-1)
	for i, entry := range history {
		ms, err := strconv.ParseInt(entry.ExpiresDateMS, 10, 64)
		if err != nil {
			continue
		}
		if ms > bestExpiry {
			bestExpiry = ms
			best = i
		}
	}
	return &history[best], nil
}
