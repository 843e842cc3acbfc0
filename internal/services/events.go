package services

import (
	"context"
	"log/slog"

	"fintrack/internal/amqp"
)

// EventPublisher receives ledger change notifications. A nil publisher
// disables events.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// publish never fails the caller: the ledger write already happened.
func publish(ctx context.Context, p EventPublisher, ev *amqp.LedgerEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"transaction_id", ev.TransactionID,
			"error", err)
	}
}
