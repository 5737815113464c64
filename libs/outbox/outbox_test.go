package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bookly-app/bookly/libs/kafkax"
)

func TestNewEventStampsOccurredAt(t *testing.T) {
	evt, err := NewEvent("reservation", "res-1", ReservationCreated, map[string]any{"reservation_id": "res-1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if payload["occurred_at"] == nil || payload["reservation_id"] != "res-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if evt.EventType != ReservationCreated || evt.AggregateID != "res-1" {
		t.Fatalf("unexpected envelope %+v", evt)
	}
}

func TestNewEventKeepsExplicitOccurredAt(t *testing.T) {
	evt, err := NewEvent("payment", "p-1", PaymentSucceeded, map[string]any{"occurred_at": "2024-06-01T10:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	_ = json.Unmarshal(evt.Payload, &payload)
	if payload["occurred_at"] != "2024-06-01T10:00:00Z" {
		t.Fatalf("occurred_at overwritten: %v", payload["occurred_at"])
	}
}

func TestToMessage(t *testing.T) {
	msg := ToMessage(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "res-1",
		EventType:   ReservationStatusChanged,
		Payload:     []byte(`{}`),
	})
	if msg.Topic != ReservationStatusChanged || string(msg.Key) != "res-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != ReservationStatusChanged {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
