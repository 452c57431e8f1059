package amqp

import (
	"encoding/json"
	"time"
)

// EntitySyncMessage asks the reconcile worker to verify one entity's cached
// totals against a fold of its ledger. It carries only identifiers; the
// worker reads current state from the store.
type EntitySyncMessage struct {
	EntityID  string    `json:"entity_id"`
	EventID   string    `json:"event_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntitySyncMessage(entityID, eventID string) *EntitySyncMessage {
	return &EntitySyncMessage{
		EntityID:  entityID,
		EventID:   eventID,
		Timestamp: time.Now(),
	}
}

func (m *EntitySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntitySyncMessageFromJSON(data []byte) (*EntitySyncMessage, error) {
	var msg EntitySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
