package adapter

import (
	"context"
	"time"
)

type AuditEventType string

const (
	AuditPaymentCreated       AuditEventType = "payment.created"
	AuditPaymentCompleted     AuditEventType = "payment.completed"
	AuditPaymentFailed        AuditEventType = "payment.failed"
	AuditSubscriptionCreated  AuditEventType = "subscription.created"
	AuditSubscriptionRenewed  AuditEventType = "subscription.renewed"
	AuditSubscriptionLinked   AuditEventType = "subscription.linked"
	AuditSubscriptionsExpired AuditEventType = "subscription.expired"
)

type AuditEvent struct {
	Type           AuditEventType
	UserID         string
	PaymentID      string
	SubscriptionID string
	TrackID        string
	Amount         int64
	Count          int
	At             time.Time
}

// AuditSink receives state transitions. Delivery is best effort; an error
// here must never undo the write that produced the event.
type AuditSink interface {
	Publish(ctx context.Context, ev AuditEvent) error
}
