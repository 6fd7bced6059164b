package amqp

import (
	"encoding/json"
	"time"
)

// SyncRequestMessage asks the sync worker to reconcile the ledger with the
// remote. It carries no ledger data: the worker always syncs the whole log,
// so any number of queued requests collapse into one sync.
type SyncRequestMessage struct {
	Reason    string    `json:"reason"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncRequestMessage creates a sync request stamped with the current time.
func NewSyncRequestMessage(reason string, revision uint64) *SyncRequestMessage {
	return &SyncRequestMessage{
		Reason:    reason,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON creates a message from JSON bytes
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
