package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/plateful/plateful-backend/internal/entitlements"
	"github.com/plateful/plateful-backend/internal/validation"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
	"github.com/plateful/plateful-backend/pkg/logger"
	"github.com/plateful/plateful-backend/pkg/outbox"
)

// casAttempts bounds how many times an apply is replayed when the
// conditional update loses a race with a concurrent writer.
const casAttempts = 3

var (
	// ErrSuperseded means the event carried an older timestamp than the
	// record's last accepted transition and was discarded. Informational:
	// callers acknowledge the event as handled.
	ErrSuperseded = errors.New("event superseded by a newer transition")

	// ErrUnmatched means a notification's purchase token resolved to no
	// known subscription. Callers decide whether to buffer or drop it.
	ErrUnmatched = errors.New("no subscription matches the purchase token")
)

type repository interface {
	FindByUserIDWithTx(tx *gorm.DB, userID uuid.UUID) (*models.Subscription, error)
	FindByPurchaseTokenWithTx(tx *gorm.DB, platform enums.Platform, token string) (*models.Subscription, error)
	CreateWithTx(tx *gorm.DB, sub *models.Subscription) error
	UpdateCompareAndSwapWithTx(tx *gorm.DB, sub *models.Subscription, readAt time.Time) (bool, error)
	AppendLogWithTx(tx *gorm.DB, entry *models.SubscriptionLog) error
}

type outboxRepository interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiryResolver interface {
	Validate(ctx context.Context, purchaseToken, productID string) (*validation.Result, error)
}

// Engine applies validation results and store notifications to the
// subscription record. All writes from both ingestion paths funnel
// through here, so the compare-and-swap discipline in one place covers
// every race between them.
type Engine struct {
	repo     repository
	outbox   outboxRepository
	txRunner txRunner
	expiry   expiryResolver
	logg     *logger.Logger
}

// EngineParams groups dependencies for the reconciliation engine.
type EngineParams struct {
	Repo              repository
	OutboxRepo        outboxRepository
	TransactionRunner txRunner
	// ExpiryResolver supplies the current expiry for Play notifications,
	// which name the event but never the new paid-through date. Optional;
	// without it such notifications apply with the stored expiry.
	ExpiryResolver expiryResolver
	Logger         *logger.Logger
}

// NewEngine builds the reconciliation engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.OutboxRepo == nil {
		return nil, fmt.Errorf("outbox repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		repo:     params.Repo,
		outbox:   params.OutboxRepo,
		txRunner: params.TransactionRunner,
		expiry:   params.ExpiryResolver,
		logg:     params.Logger,
	}, nil
}

// ApplyValidation reconciles a fresh platform validation result for the
// user, creating the subscription row on first purchase. The result's
// freshness makes it the newest event by definition, so it carries the
// current time as its event time.
func (e *Engine) ApplyValidation(ctx context.Context, userID uuid.UUID, platform enums.Platform, res *validation.Result) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if res == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation result is required")
	}
	if !res.IsValid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase could not be verified")
	}

	now := time.Now().UTC()
	status := enums.SubscriptionStatusActive
	if !res.ExpiryDate.After(now) {
		status = enums.SubscriptionStatusExpired
	}
	tier := entitlements.TierForProduct(res.ProductID)

	var result *models.Subscription
	err := e.applyWithRetry(ctx, func(tx *gorm.DB) (bool, error) {
		sub, err := e.repo.FindByUserIDWithTx(tx, userID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
		}

		if sub == nil {
			created := &models.Subscription{
				UserID:        userID,
				Platform:      platform,
				ProductID:     res.ProductID,
				PurchaseToken: res.PurchaseToken,
				Status:        status,
				Tier:          tier,
				ExpiryDate:    res.ExpiryDate,
				AutoRenewing:  res.AutoRenewing,
			}
			if err := e.repo.CreateWithTx(tx, created); err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating subscription")
			}
			if err := e.recordTransition(tx, created, enums.SubscriptionStatusNone, enums.TierFree, now); err != nil {
				return false, err
			}
			result = created
			return true, nil
		}

		next := *sub
		next.Platform = platform
		next.ProductID = res.ProductID
		next.PurchaseToken = res.PurchaseToken
		next.Status = status
		next.Tier = tier
		next.ExpiryDate = res.ExpiryDate
		next.AutoRenewing = res.AutoRenewing

		if unchanged(sub, &next) {
			result = sub
			return true, nil
		}

		ok, err := e.commitTransition(tx, sub, &next, now)
		if err != nil || !ok {
			return ok, err
		}
		result = &next
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyNotification reconciles one decoded store notification. Returns
// ErrUnmatched when the token resolves to no subscription and
// ErrSuperseded when a newer transition has already been applied; both
// leave the record untouched.
func (e *Engine) ApplyNotification(ctx context.Context, notif Notification) (*models.Subscription, error) {
	if notif.PurchaseToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase token is required")
	}
	if !notif.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown notification type %q", notif.Type))
	}
	if err := e.resolveExpiry(ctx, &notif); err != nil {
		return nil, err
	}

	var result *models.Subscription
	err := e.applyWithRetry(ctx, func(tx *gorm.DB) (bool, error) {
		sub, err := e.repo.FindByPurchaseTokenWithTx(tx, notif.Platform, notif.PurchaseToken)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "matching purchase token")
		}
		if sub == nil {
			return false, ErrUnmatched
		}

		next := *sub
		next.Status = targetStatus(notif.Type)
		switch {
		case renewsAutomatically(notif.Type):
			next.AutoRenewing = true
		case notif.Type == enums.NotificationCanceled || notif.Type == enums.NotificationExpired:
			next.AutoRenewing = false
		}
		if notif.ExpiryDate != nil {
			next.ExpiryDate = notif.ExpiryDate.UTC()
		}

		if unchanged(sub, &next) {
			// Duplicate or replayed delivery.
			result = sub
			return true, nil
		}
		if notif.OccurredAt.Before(sub.UpdatedAt) {
			return false, ErrSuperseded
		}

		ok, err := e.commitTransition(tx, sub, &next, notif.OccurredAt)
		if err != nil || !ok {
			return ok, err
		}
		result = &next
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveExpiry fetches the current paid-through date from the platform
// when a reactivating notification arrives without one. Play RTDN
// messages never embed the new expiry, so applying a RENEWAL or
// RECOVERED as-is would flip the record to ACTIVE against a stale past
// date and leave a paying user unentitled. The lookup runs before the
// transaction so no row lock is held during the network call.
func (e *Engine) resolveExpiry(ctx context.Context, notif *Notification) error {
	if notif.ExpiryDate != nil || targetStatus(notif.Type) != enums.SubscriptionStatusActive {
		return nil
	}
	if e.expiry == nil || notif.Platform != enums.PlatformAndroid || notif.ProductID == "" {
		return nil
	}
	res, err := e.expiry.Validate(ctx, notif.PurchaseToken, notif.ProductID)
	if err != nil {
		return err
	}
	expiry := res.ExpiryDate.UTC()
	notif.ExpiryDate = &expiry
	return nil
}

// applyWithRetry runs fn inside a transaction, replaying it when the
// compare-and-swap update reports a lost race.
func (e *Engine) applyWithRetry(ctx context.Context, fn func(tx *gorm.DB) (bool, error)) error {
	for attempt := 1; attempt <= casAttempts; attempt++ {
		var done bool
		err := e.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			var innerErr error
			done, innerErr = fn(tx)
			return innerErr
		})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		e.logg.Warn(e.logg.WithField(ctx, "attempt", attempt), "subscription update lost a concurrent race, retrying")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is being updated concurrently")
}

// commitTransition performs the conditional write plus the audit log and
// outbox entries that every accepted transition carries.
func (e *Engine) commitTransition(tx *gorm.DB, prev, next *models.Subscription, occurredAt time.Time) (bool, error) {
	ok, err := e.repo.UpdateCompareAndSwapWithTx(tx, next, prev.UpdatedAt)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating subscription")
	}
	if !ok {
		return false, nil
	}
	return true, e.recordTransition(tx, next, prev.Status, prev.Tier, occurredAt)
}

func (e *Engine) recordTransition(tx *gorm.DB, sub *models.Subscription, oldStatus enums.SubscriptionStatus, oldTier enums.Tier, occurredAt time.Time) error {
	entry := &models.SubscriptionLog{
		UserID:    sub.UserID,
		Platform:  sub.Platform,
		ProductID: sub.ProductID,
		OldStatus: oldStatus,
		NewStatus: sub.Status,
		OldTier:   oldTier,
		NewTier:   sub.Tier,
	}
	if err := e.repo.AppendLogWithTx(tx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending subscription log")
	}

	body, err := json.Marshal(outbox.EntitlementChanged{
		UserID:    sub.UserID.String(),
		Platform:  sub.Platform.String(),
		ProductID: sub.ProductID,
		OldStatus: oldStatus.String(),
		NewStatus: sub.Status.String(),
		OldTier:   oldTier.String(),
		NewTier:   sub.Tier.String(),
		ExpiryAt:  sub.ExpiryDate.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding entitlement event")
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt,
		Data:       body,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding outbox envelope")
	}

	event := models.OutboxEvent{
		EventType: enums.OutboxEventEntitlementChanged,
		UserID:    sub.UserID,
		Payload:   envelope,
	}
	if err := e.outbox.Insert(tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inserting outbox event")
	}
	return nil
}

// unchanged reports whether the candidate state is identical to the
// stored one across every reconciled field.
func unchanged(cur, next *models.Subscription) bool {
	return cur.Status == next.Status &&
		cur.Tier == next.Tier &&
		cur.Platform == next.Platform &&
		cur.ProductID == next.ProductID &&
		cur.PurchaseToken == next.PurchaseToken &&
		cur.ExpiryDate.Equal(next.ExpiryDate) &&
		cur.AutoRenewing == next.AutoRenewing
}
