package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

type stubValidator struct {
	res *validation.Result
	err error
}

type androidStub struct{ stubValidator }

func (s *androidStub) Validate(_ context.Context, _, _ string) (*validation.Result, error) {
	return s.res, s.err
}

type iosStub struct{ stubValidator }

func (s *iosStub) Validate(_ context.Context, _ string) (*validation.Result, error) {
	return s.res, s.err
}

type stubReconciler struct {
	gotPlatform enums.Platform
	gotResult   *validation.Result
	sub         *models.Subscription
	err         error
}

func (s *stubReconciler) ApplyValidation(_ context.Context, _ uuid.UUID, platform enums.Platform, res *validation.Result) (*models.Subscription, error) {
	s.gotPlatform = platform
	s.gotResult = res
	return s.sub, s.err
}

func TestVerifyAndroidHappyPath(t *testing.T) {
	expiry := time.Now().Add(30 * 24 * time.Hour)
	eng := &stubReconciler{sub: &models.Subscription{
		Status: enums.SubscriptionStatusActive,
		Tier:   enums.TierPremium,
	}}
	svc, err := NewVerifyService(VerifyServiceParams{
		AndroidValidator: &androidStub{stubValidator{res: &validation.Result{
			IsValid:       true,
			ProductID:     "com.app.premium",
			PurchaseToken: "tok123",
			ExpiryDate:    expiry,
			AutoRenewing:  true,
		}}},
		IOSValidator: &iosStub{},
		Engine:       eng,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := svc.VerifyAndroid(context.Background(), uuid.New(), VerifyAndroidInput{
		PurchaseToken: "tok123",
		ProductID:     "com.app.premium",
		PackageName:   "com.plateful.app",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if sub.Tier != enums.TierPremium {
		t.Fatalf("expected PREMIUM, got %s", sub.Tier)
	}
	if eng.gotPlatform != enums.PlatformAndroid {
		t.Fatalf("expected ANDROID platform, got %s", eng.gotPlatform)
	}
}

func TestVerifyAndroidRejectsUnknownProduct(t *testing.T) {
	svc, _ := NewVerifyService(VerifyServiceParams{
		AndroidValidator: &androidStub{},
		IOSValidator:     &iosStub{},
		Engine:           &stubReconciler{},
	})

	_, err := svc.VerifyAndroid(context.Background(), uuid.New(), VerifyAndroidInput{
		PurchaseToken: "tok",
		ProductID:     "com.app.unknown-sku",
		PackageName:   "com.plateful.app",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyAndroidValidatorFailurePropagates(t *testing.T) {
	depErr := pkgerrors.New(pkgerrors.CodeDependency, "play api unreachable")
	eng := &stubReconciler{}
	svc, _ := NewVerifyService(VerifyServiceParams{
		AndroidValidator: &androidStub{stubValidator{err: depErr}},
		IOSValidator:     &iosStub{},
		Engine:           eng,
	})

	_, err := svc.VerifyAndroid(context.Background(), uuid.New(), VerifyAndroidInput{
		PurchaseToken: "tok",
		ProductID:     "com.app.basic",
		PackageName:   "com.plateful.app",
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("could-not-determine must stay a dependency error, got %v", err)
	}
	if eng.gotResult != nil {
		t.Fatalf("validator failure must never reach the engine")
	}
}

func TestVerifyIOSFillsProductFromInput(t *testing.T) {
	eng := &stubReconciler{sub: &models.Subscription{Status: enums.SubscriptionStatusActive}}
	svc, _ := NewVerifyService(VerifyServiceParams{
		AndroidValidator: &androidStub{},
		IOSValidator: &iosStub{stubValidator{res: &validation.Result{
			IsValid:       true,
			PurchaseToken: "orig-1",
			ExpiryDate:    time.Now().Add(time.Hour),
		}}},
		Engine: eng,
	})

	_, err := svc.VerifyIOS(context.Background(), uuid.New(), VerifyIOSInput{
		Receipt:   "base64-receipt",
		ProductID: "com.app.basic",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if eng.gotResult.ProductID != "com.app.basic" {
		t.Fatalf("receipt without product id should fall back to the request, got %q", eng.gotResult.ProductID)
	}
	if eng.gotPlatform != enums.PlatformIOS {
		t.Fatalf("expected IOS platform")
	}
}

func TestVerifyIOSRequiresReceipt(t *testing.T) {
	svc, _ := NewVerifyService(VerifyServiceParams{
		AndroidValidator: &androidStub{},
		IOSValidator:     &iosStub{},
		Engine:           &stubReconciler{},
	})

	_, err := svc.VerifyIOS(context.Background(), uuid.New(), VerifyIOSInput{Receipt: "   "})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
