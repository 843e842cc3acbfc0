package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

type EventType string

const (
	EventTransactionCreated      EventType = "transaction.created"
	EventTransactionUpdated      EventType = "transaction.updated"
	EventTransactionDeleted      EventType = "transaction.deleted"
	EventAutomationsMaterialized EventType = "automations.materialized"
)

// LedgerEvent notifies consumers that the ledger changed. Transaction events
// carry the row as it was written; materialization events carry counts.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Date          string    `json:"date,omitempty"`
	Description   string    `json:"description,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Category      string    `json:"category,omitempty"`
	Created       int       `json:"created,omitempty"`
	Skipped       int       `json:"skipped,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent describes a write to tx. Deletes only need the id.
func NewTransactionEvent(typ EventType, tx core.Transaction) *LedgerEvent {
	ev := &LedgerEvent{
		Type:          typ,
		TransactionID: tx.ID,
		Timestamp:     time.Now(),
	}
	if typ != EventTransactionDeleted {
		ev.Date = tx.Date.String()
		ev.Description = tx.Description
		ev.Amount = tx.Amount.String()
		ev.Category = tx.Category
	}
	return ev
}

func NewMaterializedEvent(created, skipped int) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventAutomationsMaterialized,
		Created:   created,
		Skipped:   skipped,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event published by Publish.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
