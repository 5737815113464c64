package outbox

import (
	"encoding/json"
	"time"
)

// Event is the envelope written to outbox_events. The Kafka topic is the
// event type.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types published by the services.
const (
	ReservationCreated       = "booking.reservation.created.v1"
	ReservationStatusChanged = "booking.reservation.status_changed.v1"
	PaymentSucceeded         = "billing.payment.succeeded.v1"
	PaymentFailed            = "billing.payment.failed.v1"
	PaymentRefunded          = "billing.payment.refunded.v1"
	BusinessCreated          = "business.created.v1"
	UserCreated              = "auth.user.created.v1"
	PasswordResetRequested   = "auth.password_reset.requested.v1"
	EmailVerificationSent    = "auth.email_verification.requested.v1"
	ReminderDue              = "scheduler.reminder.due.v1"
)

// NewEvent marshals payload as JSON and stamps occurred_at when the payload
// is a map without one.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	if m, ok := payload.(map[string]any); ok {
		if _, set := m["occurred_at"]; !set {
			m["occurred_at"] = time.Now().UTC().Format(time.RFC3339)
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
