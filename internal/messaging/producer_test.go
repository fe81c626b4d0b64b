package messaging_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"charity-service/internal/events"
	"charity-service/internal/ledger"
	"charity-service/internal/logger"
	"charity-service/internal/messaging"
	"charity-service/internal/metrics"
	"charity-service/testing/testnats"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSProducerIntegration(t *testing.T) {
	natsContainer := testnats.SetupSharedNATS(t)
	defer natsContainer.Cleanup(t)

	producer, err := messaging.NewProducer(natsContainer.URL, "test.ledger", logger.Discard(), metrics.NewMock())
	require.NoError(t, err)
	defer producer.Close()

	sub := natsContainer.Connect(t)

	t.Run("Producer_PublishesAllocation", func(t *testing.T) {
		received := make(chan *nats.Msg, 1)
		s, err := sub.ChanSubscribe("test.ledger.>", received)
		require.NoError(t, err)
		defer s.Unsubscribe()
		require.NoError(t, sub.Flush())

		alloc := &ledger.Allocation{
			Source:   ledger.Ref{Kind: ledger.KindDonation, ID: 1},
			Invested: 50,
			Transfers: []ledger.Transfer{
				{To: ledger.Ref{Kind: ledger.KindProject, ID: 4}, Amount: 50, Closed: true},
			},
		}
		event := events.NewAllocationEvent(alloc, 80, time.Now().UTC())
		require.NoError(t, producer.Publish(context.Background(), event))

		select {
		case msg := <-received:
			assert.Equal(t, "test.ledger.donation.created", msg.Subject)
			assert.Equal(t, event.ID, msg.Header.Get(nats.MsgIdHdr))

			var got events.Event
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			assert.Equal(t, event.ID, got.ID)
			require.NotNil(t, got.Allocation)
			assert.Equal(t, alloc.Transfers, got.Allocation.Transfers)
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	})

	t.Run("Producer_HealthCheck", func(t *testing.T) {
		assert.NoError(t, producer.HealthCheck(context.Background()))
	})

	t.Run("Producer_CloseReportsDrainFailure", func(t *testing.T) {
		closing, err := messaging.NewProducer(natsContainer.URL, "test.close", logger.Discard(), metrics.NewMock())
		require.NoError(t, err)

		require.NoError(t, closing.Close())
		require.Eventually(t, func() bool {
			return errors.Is(closing.Close(), nats.ErrConnectionClosed)
		}, 5*time.Second, 50*time.Millisecond)
	})
}
