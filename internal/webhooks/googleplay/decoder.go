package googleplaywebhook

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/plateful/plateful-backend/internal/reconcile"
	"github.com/plateful/plateful-backend/pkg/enums"
	pkgerrors "github.com/plateful/plateful-backend/pkg/errors"
)

// Real-time developer notification types, as numbered by Google Play.
const (
	rtdnRecovered     = 1
	rtdnRenewed       = 2
	rtdnCanceled      = 3
	rtdnPurchased     = 4
	rtdnOnHold        = 5
	rtdnInGracePeriod = 6
	rtdnRestarted     = 7
	rtdnPaused        = 11
	rtdnRevoked       = 12
	rtdnExpired       = 13
)

// pushEnvelope is the Pub/Sub push wrapper the notifications arrive in.
// The interesting payload is base64 inside message.data.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type developerNotification struct {
	Version                  string                    `json:"version"`
	PackageName              string                    `json:"packageName"`
	EventTimeMillis          string                    `json:"eventTimeMillis"`
	SubscriptionNotification *subscriptionNotification `json:"subscriptionNotification"`
	TestNotification         *struct {
		Version string `json:"version"`
	} `json:"testNotification"`
}

type subscriptionNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SubscriptionID   string `json:"subscriptionId"`
}

// decoded is the result of unwrapping one push delivery.
type decoded struct {
	messageID string
	notif     reconcile.Notification
	payload   json.RawMessage
	// skip marks deliveries that are valid but carry nothing to apply,
	// such as Google's test notifications.
	skip bool
}

func decodePush(body []byte) (*decoded, error) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed push envelope")
	}
	if env.Message.Data == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "push envelope has no data")
	}

	payload, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding message data")
	}

	dec, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	dec.messageID = env.Message.MessageID
	return dec, nil
}

func decodePayload(payload []byte) (*decoded, error) {
	var dn developerNotification
	if err := json.Unmarshal(payload, &dn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed developer notification")
	}
	if dn.TestNotification != nil {
		return &decoded{skip: true}, nil
	}
	if dn.SubscriptionNotification == nil {
		// One-time product and voided-purchase notifications share the
		// same topic; they carry nothing for subscription state.
		return &decoded{skip: true}, nil
	}

	sn := dn.SubscriptionNotification
	if sn.PurchaseToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification has no purchase token")
	}
	notifType, ok := mapNotificationType(sn.NotificationType)
	if !ok {
		// Pause and schedule-change events do not move the state machine.
		return &decoded{skip: true}, nil
	}

	occurredAt, err := parseEventTime(dn.EventTimeMillis)
	if err != nil {
		return nil, err
	}

	return &decoded{
		payload: payload,
		notif: reconcile.Notification{
			Platform:      enums.PlatformAndroid,
			PurchaseToken: sn.PurchaseToken,
			Type:          notifType,
			ProductID:     sn.SubscriptionID,
			OccurredAt:    occurredAt,
		},
	}, nil
}

// DecodePayload re-decodes a buffered notification payload for replay.
// The second return is false when the payload carries no state change.
func DecodePayload(payload []byte) (reconcile.Notification, bool, error) {
	dec, err := decodePayload(payload)
	if err != nil {
		return reconcile.Notification{}, false, err
	}
	if dec.skip {
		return reconcile.Notification{}, false, nil
	}
	return dec.notif, true, nil
}

func mapNotificationType(t int) (enums.NotificationType, bool) {
	switch t {
	case rtdnPurchased:
		return enums.NotificationPurchased, true
	case rtdnRenewed, rtdnRestarted:
		return enums.NotificationRenewal, true
	case rtdnRecovered:
		return enums.NotificationRecovered, true
	case rtdnCanceled, rtdnRevoked:
		return enums.NotificationCanceled, true
	case rtdnInGracePeriod:
		return enums.NotificationBillingIssue, true
	case rtdnOnHold:
		return enums.NotificationOnHold, true
	case rtdnExpired:
		return enums.NotificationExpired, true
	default:
		return "", false
	}
}

func parseEventTime(millis string) (time.Time, error) {
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid event time %q", millis))
	}
	return time.UnixMilli(ms).UTC(), nil
}
