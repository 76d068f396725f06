package appstorewebhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

// Server-to-server notification types sent by the App Store.
const (
	typeInitialBuy             = "INITIAL_BUY"
	typeDidRenew               = "DID_RENEW"
	typeInteractiveRenewal     = "INTERACTIVE_RENEWAL"
	typeDidRecover             = "DID_RECOVER"
	typeCancel                 = "CANCEL"
	typeRefund                 = "REFUND"
	typeDidFailToRenew         = "DID_FAIL_TO_RENEW"
	typeDidChangeRenewalStatus = "DID_CHANGE_RENEWAL_STATUS"
)

// notification is the v1 server-to-server body. Every numeric field is a
// string of milliseconds, matching the receipt verification responses.
type notification struct {
	NotificationType string         `json:"notification_type"`
	Password         string         `json:"password"`
	Environment      string         `json:"environment"`
	AutoRenewStatus  string         `json:"auto_renew_status"`
	UnifiedReceipt   unifiedReceipt `json:"unified_receipt"`
}

type unifiedReceipt struct {
	LatestReceiptInfo  []receiptInfo    `json:"latest_receipt_info"`
	PendingRenewalInfo []pendingRenewal `json:"pending_renewal_info"`
	Environment        string           `json:"environment"`
}

type receiptInfo struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMS        string `json:"purchase_date_ms"`
	ExpiresDateMS         string `json:"expires_date_ms"`
	CancellationDateMS    string `json:"cancellation_date_ms"`
}

type pendingRenewal struct {
	AutoRenewStatus       string `json:"auto_renew_status"`
	OriginalTransactionID string `json:"original_transaction_id"`
}

type decoded struct {
	messageID string
	notif     reconcile.Notification
	payload   json.RawMessage
	skip      bool
}

func decodeNotification(body []byte, sharedSecret string) (*decoded, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed notification body")
	}
	if n.NotificationType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification type is required")
	}
	if sharedSecret != "" && n.Password != sharedSecret {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shared secret mismatch")
	}

	latest := latestTransaction(n.UnifiedReceipt.LatestReceiptInfo)
	if latest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification carries no transactions")
	}
	if latest.OriginalTransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction has no original transaction id")
	}

	notifType, ok := mapNotificationType(&n)
	messageID := fmt.Sprintf("%s:%s", n.NotificationType, latest.TransactionID)
	if !ok {
		return &decoded{messageID: messageID, skip: true}, nil
	}

	occurredAt := eventTime(latest)
	dec := &decoded{
		messageID: messageID,
		payload:   json.RawMessage(body),
		notif: reconcile.Notification{
			Platform:      enums.PlatformIOS,
			PurchaseToken: latest.OriginalTransactionID,
			Type:          notifType,
			OccurredAt:    occurredAt,
		},
	}
	if expiry, err := parseMillis(latest.ExpiresDateMS); err == nil {
		dec.notif.ExpiryDate = &expiry
	}
	return dec, nil
}

// DecodePayload re-decodes a buffered notification payload for replay.
// The shared-secret check happened at ingest time, not here. The second
// return is false when the payload carries no state change.
func DecodePayload(payload []byte) (reconcile.Notification, bool, error) {
	dec, err := decodeNotification(payload, "")
	if err != nil {
		return reconcile.Notification{}, false, err
	}
	if dec.skip {
		return reconcile.Notification{}, false, nil
	}
	return dec.notif, true, nil
}

func mapNotificationType(n *notification) (enums.NotificationType, bool) {
	switch n.NotificationType {
	case typeInitialBuy:
		return enums.NotificationPurchased, true
	case typeDidRenew, typeInteractiveRenewal:
		return enums.NotificationRenewal, true
	case typeDidRecover:
		return enums.NotificationRecovered, true
	case typeCancel, typeRefund:
		return enums.NotificationCanceled, true
	case typeDidFailToRenew:
		return enums.NotificationBillingIssue, true
	case typeDidChangeRenewalStatus:
		// Auto-renew toggled off is the normal cancel path on iOS; the
		// user keeps access through the paid period. Toggled back on
		// carries no state change until the next renewal event.
		if n.AutoRenewStatus == "false" || pendingAutoRenewOff(n.UnifiedReceipt.PendingRenewalInfo) {
			return enums.NotificationCanceled, true
		}
		return "", false
	default:
		return "", false
	}
}

func pendingAutoRenewOff(rows []pendingRenewal) bool {
	for _, row := range rows {
		if row.AutoRenewStatus == "0" {
			return true
		}
	}
	return false
}

// latestTransaction picks the entry with the greatest expiry, matching
// how the receipt validator chooses the canonical transaction.
func latestTransaction(rows []receiptInfo) *receiptInfo {
	var latest *receiptInfo
	var latestMS int64
	for i := range rows {
		ms, err := strconv.ParseInt(rows[i].ExpiresDateMS, 10, 64)
		if err != nil {
			continue
		}
		if latest == nil || ms > latestMS {
			latest = &rows[i]
			latestMS = ms
		}
	}
	return latest
}

// eventTime prefers the cancellation timestamp when one exists, since
// that is the moment the state actually changed.
func eventTime(tx *receiptInfo) time.Time {
	if t, err := parseMillis(tx.CancellationDateMS); err == nil {
		return t
	}
	if t, err := parseMillis(tx.PurchaseDateMS); err == nil {
		return t
	}
	return time.Now().UTC()
}

func parseMillis(value string) (time.Time, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
