package model

import "time"

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage is a domain event stored in the transaction that produced it.
// EventID repeats the id inside Payload so consumers can drop redeliveries.
type OutboxMessage struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID      string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	Topic        string     `gorm:"type:varchar(64);not null" json:"topic"`
	PartitionKey string     `gorm:"type:varchar(64);not null" json:"partition_key"`
	EventType    string     `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload      string     `gorm:"type:text;not null" json:"payload"`
	Status       string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	LastError    string     `gorm:"type:varchar(255)" json:"last_error,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_event"
}
