package events

import (
	"context"
	"time"

	"charity-service/internal/ledger"

	"github.com/google/uuid"
)

const (
	TypeProjectCreated  = "project.created"
	TypeDonationCreated = "donation.created"
)

// Event announces that a new record entered the ledger and how its money was
// matched against the other side.
type Event struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	FullAmount int64              `json:"full_amount"`
	Allocation *ledger.Allocation `json:"allocation"`
}

// Key groups the events of one record, e.g. as a Kafka partition key.
func (e Event) Key() string {
	if e.Allocation == nil {
		return e.ID
	}
	return e.Allocation.Source.String()
}

func NewAllocationEvent(alloc *ledger.Allocation, fullAmount int64, at time.Time) Event {
	eventType := TypeDonationCreated
	if alloc.Source.Kind == ledger.KindProject {
		eventType = TypeProjectCreated
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at,
		FullAmount: fullAmount,
		Allocation: alloc,
	}
}

// Publisher delivers events after the ledger transaction committed. Delivery
// is best effort; a failed publish never undoes a committed allocation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }

// Recorder keeps published events in memory. Handy in tests.
type Recorder struct {
	Events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }
