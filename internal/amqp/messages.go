package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RowSyncMessage asks the worker to push one stored summary row to the
// external recorder. It carries only the row id; the worker loads the row
// from the database.
type RowSyncMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRowSyncMessage creates a sync message stamped with the current time.
func NewRowSyncMessage(id int64, sessionID string) *RowSyncMessage {
	return &RowSyncMessage{
		ID:        id,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RowSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RowSyncMessageFromJSON decodes a message and rejects non-positive ids.
func RowSyncMessageFromJSON(data []byte) (*RowSyncMessage, error) {
	var msg RowSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, errors.New("row sync message: missing id")
	}
	return &msg, nil
}
