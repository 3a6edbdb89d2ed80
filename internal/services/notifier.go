package services

import (
	"context"
	"log/slog"

	"potshare/internal/amqp"
	"potshare/internal/metrics"
)

// Invalidator drops cached state derived from a pot's ledger.
type Invalidator interface {
	Invalidate(potID string)
}

// Notifier runs the side effects of a committed ledger write. None of them
// can fail the write, which is already durable when Committed is called.
type Notifier struct {
	publisher   EventPublisher
	invalidator Invalidator
	metrics     *metrics.Metrics
}

// NewNotifier accepts nil for any collaborator that is not configured.
func NewNotifier(publisher EventPublisher, invalidator Invalidator, m *metrics.Metrics) *Notifier {
	return &Notifier{publisher: publisher, invalidator: invalidator, metrics: m}
}

func (n *Notifier) Committed(ctx context.Context, eventType amqp.EventType, potID, entityID string) {
	if n == nil {
		return
	}
	if n.invalidator != nil {
		n.invalidator.Invalidate(potID)
	}
	n.metrics.LedgerWrite(kindOf(eventType))

	if n.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event", "type", eventType)
		return
	}
	if err := n.publisher.Publish(ctx, amqp.NewLedgerEvent(eventType, potID, entityID)); err != nil {
		n.metrics.PublishFailed()
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", eventType,
			"pot_id", potID,
			"entity_id", entityID,
			"error", err)
	}
}

func kindOf(t amqp.EventType) string {
	if t == amqp.EventContributionCreated {
		return "contribution"
	}
	return "expense"
}
