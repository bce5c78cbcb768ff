package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"campaignledger/internal/config"
	"campaignledger/internal/metrics"
	"campaignledger/internal/model"
	"campaignledger/internal/repository"
)

// MessageSender publishes one message. *mq.Producer is the Kafka implementation.
type MessageSender interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender publishes pending outbox events. A failed publish is recorded
// on the row; after business.max_retry_count attempts the row is parked as
// FAILED and no longer retried.
type OutboxSender struct {
	outboxRepo  *repository.OutboxRepository
	sender      MessageSender
	logger      *zap.Logger
	stopCh      chan struct{}
	stopOnce    sync.Once
	interval    time.Duration
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

func NewOutboxSender(outboxRepo *repository.OutboxRepository, sender MessageSender, cfg *config.Config, logger *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo:  outboxRepo,
		sender:      sender,
		logger:      logger.With(zap.String("job", "outbox_sender")),
		stopCh:      make(chan struct{}),
		interval:    time.Second,
		batchSize:   100,
		maxAttempts: cfg.Business.MaxRetryCount,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *OutboxSender) SetClock(now func() time.Time) {
	s.now = now
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox sender exiting", zap.Error(ctx.Err()))
			return
		case <-s.stopCh:
			s.logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.ProcessPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ProcessPendingMessages publishes one batch and returns how many were sent.
func (s *OutboxSender) ProcessPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.ListPending(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("load pending events", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.publish(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) publish(ctx context.Context, msg *model.OutboxMessage) bool {
	log := s.logger.With(
		zap.Int64("id", msg.ID),
		zap.String("event_id", msg.EventID),
		zap.String("event_type", msg.EventType))

	sendErr := s.sender.SendMessage(msg.Topic, msg.PartitionKey, msg.Payload)
	if sendErr == nil {
		metrics.OutboxPublished.WithLabelValues("sent").Inc()
		if err := s.outboxRepo.MarkSent(ctx, msg.ID, s.now()); err != nil {
			// the event will be published again; consumers dedupe on event_id
			log.Error("mark event sent", zap.Error(err))
		}
		return true
	}

	metrics.OutboxPublished.WithLabelValues("error").Inc()
	log.Warn("publish failed", zap.String("topic", msg.Topic), zap.Error(sendErr))

	parked, err := s.outboxRepo.RecordFailure(ctx, msg.ID, sendErr.Error(), s.maxAttempts)
	if err != nil {
		log.Error("record publish failure", zap.Error(err))
		return false
	}
	if parked {
		metrics.OutboxPublished.WithLabelValues("failed").Inc()
		log.Error("event parked after max attempts", zap.Int("attempts", msg.Attempts+1))
	}
	return false
}
