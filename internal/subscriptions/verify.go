package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/internal/entitlements"
	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

type androidValidator interface {
	Validate(ctx context.Context, purchaseToken, productID string) (*validation.Result, error)
}

type iosValidator interface {
	Validate(ctx context.Context, receipt string) (*validation.Result, error)
}

type reconciler interface {
	ApplyValidation(ctx context.Context, userID uuid.UUID, platform enums.Platform, res *validation.Result) (*models.Subscription, error)
}

// VerifyService runs the synchronous purchase verification path:
// validate the artifact against the platform, then reconcile the result
// into the subscription record.
type VerifyService struct {
	android androidValidator
	ios     iosValidator
	engine  reconciler
}

// VerifyServiceParams groups dependencies for the verification service.
type VerifyServiceParams struct {
	AndroidValidator androidValidator
	IOSValidator     iosValidator
	Engine           reconciler
}

// VerifyAndroidInput carries the client-supplied Android purchase artifact.
type VerifyAndroidInput struct {
	PurchaseToken string `json:"purchaseToken" validate:"required"`
	ProductID     string `json:"productId" validate:"required"`
	PackageName   string `json:"packageName" validate:"required"`
}

// VerifyIOSInput carries the client-supplied base64 receipt.
type VerifyIOSInput struct {
	Receipt   string `json:"receipt" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
}

func NewVerifyService(params VerifyServiceParams) (*VerifyService, error) {
	if params.AndroidValidator == nil {
		return nil, fmt.Errorf("android validator required")
	}
	if params.IOSValidator == nil {
		return nil, fmt.Errorf("ios validator required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("reconcile engine required")
	}
	return &VerifyService{
		android: params.AndroidValidator,
		ios:     params.IOSValidator,
		engine:  params.Engine,
	}, nil
}

// VerifyAndroid validates a Play purchase token and reconciles the result.
func (s *VerifyService) VerifyAndroid(ctx context.Context, userID uuid.UUID, input VerifyAndroidInput) (*models.Subscription, error) {
	token := strings.TrimSpace(input.PurchaseToken)
	productID := strings.TrimSpace(input.ProductID)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchaseToken is required")
	}
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	if !entitlements.KnownProduct(productID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown product %q", productID))
	}

	res, err := s.android.Validate(ctx, token, productID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyValidation(ctx, userID, enums.PlatformAndroid, res)
}

// VerifyIOS validates an App Store receipt and reconciles the result.
// The sandbox-redirect retry happens inside the validator.
func (s *VerifyService) VerifyIOS(ctx context.Context, userID uuid.UUID, input VerifyIOSInput) (*models.Subscription, error) {
	receipt := strings.TrimSpace(input.Receipt)
	if receipt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt is required")
	}

	res, err := s.ios.Validate(ctx, receipt)
	if err != nil {
		return nil, err
	}
	if res.ProductID == "" {
		res.ProductID = strings.TrimSpace(input.ProductID)
	}
	return s.engine.ApplyValidation(ctx, userID, enums.PlatformIOS, res)
}
