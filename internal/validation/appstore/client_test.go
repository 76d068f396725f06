package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plateful/plateful-backend/pkg/config"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
)

func testClient(t *testing.T, productionURL, sandboxURL string) *Client {
	t.Helper()
	c, err := NewClient(config.AppStoreConfig{
		ProductionURL: productionURL,
		SandboxURL:    sandboxURL,
		SharedSecret:  "shhh",
		Timeout:       2 * time.Second,
		MaxAttempts:   3,
	}, logger.New(logger.Options{Output: io.Discard}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func receiptBody(expiry time.Time) string {
	ms := strconv.FormatInt(expiry.UnixMilli(), 10)
	return fmt.Sprintf(`{
		"status": 0,
		"environment": "Sandbox",
		"latest_receipt_info": [
			{"product_id": "com.app.basic", "original_transaction_id": "orig-1", "expires_date_ms": "100"},
			{"product_id": "com.app.premium", "original_transaction_id": "orig-1", "expires_date_ms": %q}
		],
		"pending_renewal_info": [
			{"product_id": "com.app.premium", "auto_renew_status": "1"}
		]
	}`, ms)
}

func TestValidateSandboxRedirect(t *testing.T) {
	var prodCalls, sandboxCalls int32
	expiry := time.Now().Add(30 * 24 * time.Hour).UTC()

	prod := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&prodCalls, 1)
		fmt.Fprint(w, `{"status": 21007}`)
	}))
	defer prod.Close()

	sandbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sandboxCalls, 1)
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode verify request: %v", err)
		}
		if req["password"] != "shhh" {
			t.Errorf("shared secret not forwarded, got %v", req["password"])
		}
		fmt.Fprint(w, receiptBody(expiry))
	}))
	defer sandbox.Close()

	res, err := testClient(t, prod.URL, sandbox.URL).Validate(context.Background(), "base64-receipt")
	if err != nil {
		t.Fatalf("sandbox redirect must not surface as an error, got %v", err)
	}
	if !res.IsValid {
		t.Fatalf("expected a valid result")
	}
	if res.ProductID != "com.app.premium" {
		t.Fatalf("expected the newest transaction's product, got %s", res.ProductID)
	}
	if !res.ExpiryDate.Equal(time.UnixMilli(expiry.UnixMilli()).UTC()) {
		t.Fatalf("unexpected expiry %s", res.ExpiryDate)
	}
	if !res.AutoRenewing {
		t.Fatalf("expected auto renew from pending_renewal_info")
	}
	if atomic.LoadInt32(&prodCalls) != 1 || atomic.LoadInt32(&sandboxCalls) != 1 {
		t.Fatalf("expected exactly one call per endpoint, got prod=%d sandbox=%d", prodCalls, sandboxCalls)
	}
}

func TestValidateRetriesTransientServerError(t *testing.T) {
	var calls int32
	expiry := time.Now().Add(24 * time.Hour).UTC()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, receiptBody(expiry))
	}))
	defer srv.Close()

	res, err := testClient(t, srv.URL, srv.URL).Validate(context.Background(), "base64-receipt")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if !res.IsValid {
		t.Fatalf("expected a valid result")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestValidateHardRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 21003}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, srv.URL).Validate(context.Background(), "base64-receipt")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected a validation rejection, got %v", err)
	}
}

func TestValidateReceiptServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 21005}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, srv.URL).Validate(context.Background(), "base64-receipt")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected a dependency error, got %v", err)
	}
}

func TestValidateExpiredSubscriptionStillVerifies(t *testing.T) {
	expiry := time.Now().Add(-24 * time.Hour).UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := receiptBody(expiry)
		var parsed map[string]any
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			t.Errorf("rebuild body: %v", err)
		}
		parsed["status"] = statusSubscriptionExpired
		if err := json.NewEncoder(w).Encode(parsed); err != nil {
			t.Errorf("encode body: %v", err)
		}
	}))
	defer srv.Close()

	res, err := testClient(t, srv.URL, srv.URL).Validate(context.Background(), "base64-receipt")
	if err != nil {
		t.Fatalf("an expired-but-genuine receipt is not a rejection, got %v", err)
	}
	if !res.ExpiryDate.Before(time.Now()) {
		t.Fatalf("expected a past expiry, got %s", res.ExpiryDate)
	}
}
