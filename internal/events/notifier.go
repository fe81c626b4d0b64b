package events

import (
	"context"
	"log/slog"
	"time"

	"charity-service/internal/ledger"
	"charity-service/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Notifier reports committed allocation runs: it meters them and hands an
// event to the publisher.
type Notifier struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewNotifier(publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = Noop{}
	}
	if m == nil {
		m = metrics.NewMock()
	}
	return &Notifier{publisher: publisher, metrics: m, logger: logger}
}

// Created must only be called after the transaction that produced alloc
// committed. Publish failures are logged and swallowed.
func (n *Notifier) Created(ctx context.Context, alloc *ledger.Allocation, fullAmount int64, at time.Time) {
	kind := alloc.Source.Kind
	n.metrics.Ledger.RecordCreated(ctx, kind, fullAmount)
	n.metrics.Ledger.RecordAllocation(ctx, kind, alloc.Invested, len(alloc.Transfers), alloc.ClosedCount())

	n.logger.InfoContext(ctx, "allocation committed",
		"source", alloc.Source.String(),
		"full_amount", fullAmount,
		"invested", alloc.Invested,
		"transfers", len(alloc.Transfers),
		"closed", alloc.ClosedCount(),
	)

	event := NewAllocationEvent(alloc, fullAmount, at)

	// The request may already be finishing; the event should still go out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.publisher.Publish(pubCtx, event); err != nil {
		n.logger.WarnContext(ctx, "failed to publish allocation event",
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
	}
}

// Closed records a record closed outside an allocation run, e.g. by lowering
// a project's target to what it already holds.
func (n *Notifier) Closed(ctx context.Context, ref ledger.Ref) {
	n.metrics.Ledger.RecordClosed(ctx, ref.Kind)
	n.logger.InfoContext(ctx, "record closed by edit", "ref", ref.String())
}

func (n *Notifier) Close() error {
	return n.publisher.Close()
}
