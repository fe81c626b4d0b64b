package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"charity-service/internal/events"
	"charity-service/internal/kafka"
	"charity-service/internal/ledger"
	"charity-service/internal/logger"
	"charity-service/internal/metrics"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledProducer never answers until it is closed, like a broker that went
// away after start-up.
type stalledProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (s *stalledProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-s.release
	return 0, 0, sarama.ErrOutOfBrokers
}

func (s *stalledProducer) Close() error {
	close(s.release)
	return nil
}

func TestProducer(t *testing.T) {
	alloc := &ledger.Allocation{Source: ledger.Ref{Kind: ledger.KindProject, ID: 9}, Invested: 30}
	event := events.NewAllocationEvent(alloc, 100, time.Now().UTC())

	t.Run("sends keyed json message", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, kafka.NewConfig())
		mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			key, err := msg.Key.Encode()
			if err != nil {
				return err
			}
			if string(key) != "project:9" {
				return errors.New("unexpected key " + string(key))
			}
			value, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			var got events.Event
			if err := json.Unmarshal(value, &got); err != nil {
				return err
			}
			if got.ID != event.ID || got.Type != events.TypeProjectCreated {
				return errors.New("unexpected payload")
			}
			return nil
		})

		producer := kafka.NewProducerWith(mock, "ledger-events", logger.Discard(), metrics.NewMock())
		defer producer.Close()

		require.NoError(t, producer.Publish(context.Background(), event))
	})

	t.Run("propagates broker errors", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, kafka.NewConfig())
		mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		producer := kafka.NewProducerWith(mock, "ledger-events", logger.Discard(), metrics.NewMock())
		defer producer.Close()

		err := producer.Publish(context.Background(), event)
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	})

	t.Run("gives up when the context expires", func(t *testing.T) {
		stalled := &stalledProducer{release: make(chan struct{})}
		producer := kafka.NewProducerWith(stalled, "ledger-events", logger.Discard(), metrics.NewMock())
		defer producer.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := producer.Publish(ctx, event)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}
