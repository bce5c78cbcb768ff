package job

import (
	"context"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaignledger/internal/infrastructure/mq"
	"campaignledger/internal/model"
	"campaignledger/internal/repository"
	"campaignledger/internal/testkit"
)

func seedOutbox(t *testing.T, repo *repository.OutboxRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), nil, &model.OutboxMessage{
			EventID:      fmt.Sprintf("evt-%d", i),
			Topic:        "wallet-events",
			PartitionKey: "wallet:1",
			EventType:    "deposit.completed",
			Payload:      `{"event_type":"deposit.completed"}`,
			Status:       model.OutboxStatusPending,
		}))
	}
}

func TestOutboxSenderPublishes(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, 2)

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()

	s := NewOutboxSender(repo, mq.NewProducerFrom(sp), testkit.Config(), zap.NewNop())
	assert.Equal(t, 2, s.ProcessPendingMessages(ctx))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	sent, err := repo.ListByStatus(ctx, model.OutboxStatusSent, 10)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.NotNil(t, sent[0].SentAt)
	require.NoError(t, sp.Close())
}

func TestOutboxSenderParksAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, 1)

	cfg := testkit.Config()
	cfg.Business.MaxRetryCount = 2

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := NewOutboxSender(repo, mq.NewProducerFrom(sp), cfg, zap.NewNop())
	assert.Equal(t, 0, s.ProcessPendingMessages(ctx))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.NotEmpty(t, pending[0].LastError)

	assert.Equal(t, 0, s.ProcessPendingMessages(ctx))
	failed, err := repo.ListByStatus(ctx, model.OutboxStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)

	// parked rows are not retried
	assert.Equal(t, 0, s.ProcessPendingMessages(ctx))
	require.NoError(t, sp.Close())
}
