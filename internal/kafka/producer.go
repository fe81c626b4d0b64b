package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"charity-service/internal/events"
	"charity-service/internal/metrics"

	"github.com/IBM/sarama"
)

// Producer publishes ledger events to one Kafka topic. Events of the same
// record share a key and therefore a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "charity-service"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Net.DialTimeout = 5 * time.Second
	config.Net.ReadTimeout = 5 * time.Second
	config.Net.WriteTimeout = 5 * time.Second
	return config
}

func NewProducer(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, err
	}

	logger.Info("kafka producer initialized", "brokers", brokers, "topic", topic)
	return NewProducerWith(producer, topic, logger, m), nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(producer sarama.SyncProducer, topic string, logger *slog.Logger, m *metrics.Metrics) *Producer {
	if m == nil {
		m = metrics.NewMock()
	}
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
		metrics:  m,
	}
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

// Publish sends event and waits for the broker until ctx is done. A send
// abandoned on cancellation may still be delivered later by sarama.
func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	start := time.Now()

	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := p.send(event)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	partition, offset, err := res.partition, res.offset, res.err

	p.metrics.Messaging.RecordPublish(ctx, "kafka", p.topic, time.Since(start), err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send event to kafka", "topic", p.topic, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event sent to kafka",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"key", event.Key(),
	)
	return nil
}

func (p *Producer) send(event events.Event) (int32, int64, error) {
	valueBytes, err := json.Marshal(event)
	if err != nil {
		return 0, 0, err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(valueBytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
			{Key: []byte("event-id"), Value: []byte(event.ID)},
		},
	}
	return p.producer.SendMessage(msg)
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
