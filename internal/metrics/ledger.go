package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics tracks money moving between donations and projects.
type LedgerMetrics struct {
	entitiesCreated metric.Int64Counter
	amountCreated   metric.Int64Counter
	amountAllocated metric.Int64Counter
	entitiesClosed  metric.Int64Counter
	transfers       metric.Int64Histogram
	mismatches      metric.Int64Counter
}

func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	lm := &LedgerMetrics{}

	var err error

	lm.entitiesCreated, err = meter.Int64Counter(
		"charity.entities.created",
		metric.WithDescription("Projects and donations created"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	lm.amountCreated, err = meter.Int64Counter(
		"charity.amount.created",
		metric.WithDescription("Full amount of created projects and donations"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	lm.amountAllocated, err = meter.Int64Counter(
		"charity.amount.allocated",
		metric.WithDescription("Amount moved from donations into projects"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	lm.entitiesClosed, err = meter.Int64Counter(
		"charity.entities.closed",
		metric.WithDescription("Projects and donations that became fully invested"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	// Number of sinks touched by a single allocation run
	lm.transfers, err = meter.Int64Histogram(
		"charity.allocation.transfers",
		metric.WithDescription("Sinks touched per allocation run"),
		metric.WithUnit("{transfer}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return nil, err
	}

	lm.mismatches, err = meter.Int64Counter(
		"charity.reconcile.mismatches",
		metric.WithDescription("Reconciliation runs that found an inconsistent ledger"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordCreated records a new project or donation of the given kind.
func (lm *LedgerMetrics) RecordCreated(ctx context.Context, kind string, fullAmount int64) {
	if lm == nil || lm.entitiesCreated == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	lm.entitiesCreated.Add(ctx, 1, attrs)
	lm.amountCreated.Add(ctx, fullAmount, attrs)
}

// RecordAllocation records one allocation run triggered by a new entity.
func (lm *LedgerMetrics) RecordAllocation(ctx context.Context, sourceKind string, amount int64, transfers int, closed int) {
	if lm == nil || lm.amountAllocated == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", sourceKind))
	lm.amountAllocated.Add(ctx, amount, attrs)
	lm.transfers.Record(ctx, int64(transfers), attrs)
	if closed > 0 {
		lm.entitiesClosed.Add(ctx, int64(closed), attrs)
	}
}

func (lm *LedgerMetrics) RecordClosed(ctx context.Context, kind string) {
	if lm == nil || lm.entitiesClosed == nil {
		return
	}
	lm.entitiesClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", kind)))
}

func (lm *LedgerMetrics) RecordMismatch(ctx context.Context, reason string) {
	if lm == nil || lm.mismatches == nil {
		return
	}
	lm.mismatches.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
