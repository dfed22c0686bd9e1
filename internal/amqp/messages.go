package amqp

import (
	"encoding/json"
	"time"

	"myfinance/internal/core"
)

// MessageVersion is bumped when the envelope shape changes.
const MessageVersion = 1

// LedgerEventMessage is the wire envelope for a committed ledger mutation.
// It carries ids only; consumers read current state from the store.
type LedgerEventMessage struct {
	Version int              `json:"version"`
	Event   core.LedgerEvent `json:"event"`
	SentAt  time.Time        `json:"sentAt"`
}

// NewLedgerEventMessage wraps ev, stamping the event time when unset.
func NewLedgerEventMessage(ev core.LedgerEvent) *LedgerEventMessage {
	now := time.Now()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	return &LedgerEventMessage{
		Version: MessageVersion,
		Event:   ev,
		SentAt:  now,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
