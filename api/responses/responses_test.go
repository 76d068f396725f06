package responses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data["hello"] != "world" {
		t.Fatalf("data = %+v", envelope.Data)
	}
}

func TestWriteErrorTypedValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "purchaseToken is required").
		WithDetails(map[string]string{"purchaseToken": "is required"})

	WriteError(context.Background(), testLogger(), rec, err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "purchaseToken is required" {
		t.Fatalf("message = %q", envelope.Error.Message)
	}
	if envelope.Error.Details == nil {
		t.Fatal("expected details to pass through")
	}
}

func TestWriteErrorLimitExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeLimitExceeded, "recipes limit reached").
		WithDetails(map[string]any{"feature": "recipes", "limit": 25})

	WriteError(context.Background(), testLogger(), rec, err)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeLimitExceeded) {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "recipes limit reached" {
		t.Fatalf("message = %q", envelope.Error.Message)
	}
}

func TestWriteErrorUntypedHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), testLogger(), rec, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("message leaked: %q", envelope.Error.Message)
	}
}

func TestWriteErrorInternalNeverEchoesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInternal, "cas retries exhausted for user 42")

	WriteError(context.Background(), testLogger(), rec, err)

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("message leaked: %q", envelope.Error.Message)
	}
}
