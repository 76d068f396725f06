package enums

// OutboxStatus tracks the delivery state of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
	OutboxStatusTerminal  OutboxStatus = "terminal"
)

// OutboxEventType names the domain events handed to the notification
// delivery subsystem.
type OutboxEventType string

const (
	OutboxEventEntitlementChanged OutboxEventType = "entitlement.changed"
)
