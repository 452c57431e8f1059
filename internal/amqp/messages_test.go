package amqp

import (
	"testing"
	"time"
)

func TestNewEntitySyncMessage(t *testing.T) {
	msg := NewEntitySyncMessage("e1", "ev1")

	if msg.EntityID != "e1" || msg.EventID != "ev1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatalf("timestamp should be set")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Fatalf("timestamp should be recent, got %v", msg.Timestamp)
	}
}

func TestEntitySyncMessageJSON(t *testing.T) {
	msg := &EntitySyncMessage{
		EntityID:  "e1",
		EventID:   "ev1",
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	parsed, err := EntitySyncMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if parsed.EntityID != msg.EntityID || parsed.EventID != msg.EventID {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("timestamp mismatch: %v", parsed.Timestamp)
	}
}

func TestEntitySyncMessageInvalidJSON(t *testing.T) {
	if _, err := EntitySyncMessageFromJSON([]byte(`{"entity_id": 42}`)); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
}
