package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"charity-service/internal/events"
	"charity-service/internal/metrics"

	"github.com/nats-io/nats.go"
)

// Producer publishes ledger events to NATS. Each event type goes to its own
// subject below the configured prefix, e.g. "charity.ledger.donation.created".
type Producer struct {
	conn    *nats.Conn
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProducer(url string, prefix string, logger *slog.Logger, m *metrics.Metrics) (*Producer, error) {
	if m == nil {
		m = metrics.NewMock()
	}
	nc, err := nats.Connect(url, nats.Name("charity-service"))
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject_prefix", prefix)

	return &Producer{
		conn:    nc,
		prefix:  prefix,
		logger:  logger,
		metrics: m,
	}, nil
}

func (p *Producer) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	subject := p.Subject(event.Type)
	start := time.Now()

	err := p.publish(subject, event)
	p.metrics.Messaging.RecordPublish(ctx, "nats", subject, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send event to NATS", "subject", subject, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event sent to NATS", "subject", subject, "event_id", event.ID)
	return nil
}

func (p *Producer) publish(subject string, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	return p.conn.PublishMsg(msg)
}

// HealthCheck verifies NATS connection is healthy
func (p *Producer) HealthCheck(context.Context) error {
	if p.conn == nil {
		return nats.ErrConnectionClosed
	}
	if !p.conn.IsConnected() {
		return nats.ErrDisconnected
	}
	return nil
}

// Close drains the connection, falling back to a hard close when the drain
// cannot start.
func (p *Producer) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
