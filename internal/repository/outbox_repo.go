package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"campaignledger/internal/model"
)

const maxLastErrorLen = 255

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create must be given the transaction of the state change the event describes.
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// ListPending returns unpublished events oldest first.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	return r.ListByStatus(ctx, model.OutboxStatusPending, limit)
}

func (r *OutboxRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusPending).
		Updates(map[string]interface{}{
			"status":     model.OutboxStatusSent,
			"sent_at":    at,
			"last_error": "",
		}).Error
}

// RecordFailure counts a failed publish and parks the event as FAILED once it
// has been attempted maxAttempts times. It reports whether the event was parked.
func (r *OutboxRepository) RecordFailure(ctx context.Context, id int64, reason string, maxAttempts int) (bool, error) {
	reason = truncateUTF8(reason, maxLastErrorLen)

	var parked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.OutboxMessage{}).
			Where("id = ? AND status = ?", id, model.OutboxStatusPending).
			Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": reason,
			}).Error
		if err != nil {
			return err
		}

		result := tx.Model(&model.OutboxMessage{}).
			Where("id = ? AND status = ? AND attempts >= ?", id, model.OutboxStatusPending, maxAttempts).
			Update("status", model.OutboxStatusFailed)
		parked = result.RowsAffected == 1
		return result.Error
	})
	return parked, err
}

// truncateUTF8 cuts s to at most max bytes without splitting a rune.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
