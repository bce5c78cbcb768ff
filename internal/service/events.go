package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campaignledger/internal/model"
	"campaignledger/internal/repository"
)

const (
	EventDepositCompleted    = "deposit.completed"
	EventDepositFailed       = "deposit.failed"
	EventWithdrawalCompleted = "withdrawal.completed"
	EventWithdrawalFailed    = "withdrawal.failed"
	EventEarningCredited     = "earning.credited"
	EventReservationApproved = "reservation.approved"
	EventReservationRejected = "reservation.rejected"
	EventReservationExpired  = "reservation.expired"
)

// Event is the JSON body published for every outbox row.
type Event struct {
	ID         string      `json:"event_id"`
	Type       string      `json:"event_type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type eventWriter struct {
	outboxRepo *repository.OutboxRepository
}

// write stores an event in the caller's transaction. key is the aggregate id so
// that events of one wallet or reservation land on one partition in order.
func (w eventWriter) write(ctx context.Context, tx *gorm.DB, topic, key, eventType string, at time.Time, data interface{}) error {
	id := uuid.NewString()
	payload, err := json.Marshal(Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: at,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	msg := &model.OutboxMessage{
		EventID:      id,
		Topic:        topic,
		PartitionKey: key,
		EventType:    eventType,
		Payload:      string(payload),
		Status:       model.OutboxStatusPending,
	}
	if err := w.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}
