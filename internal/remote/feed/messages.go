package feed

import (
	"encoding/json"
	"time"
)

const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeMessage announces that an owner's ledger changed. It carries only the
// operation and identifiers; consumers fetch current state from the store.
type ChangeMessage struct {
	Op        string    `json:"op"`
	Owner     string    `json:"owner"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(op, owner, id string) *ChangeMessage {
	return &ChangeMessage{
		Op:        op,
		Owner:     owner,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
