package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"campaignledger/internal/model"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.WalletTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.WalletTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var trans model.WalletTransaction
	err := tx.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// Settle moves a PENDING entry to COMPLETED or FAILED. Only the first caller
// matches; later callers get ErrStatusConflict.
func (r *TransactionRepository) Settle(ctx context.Context, tx *gorm.DB, id string, toStatus string, at time.Time) error {
	if toStatus != model.TransactionStatusCompleted && toStatus != model.TransactionStatusFailed {
		return ErrStatusConflict
	}

	result := tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("id = ? AND status = ?", id, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":       toStatus,
			"completed_at": at,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, txnType string, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	var transactions []*model.WalletTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).Where("user_id = ?", userID)
	if txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// ListAllByWallet returns the full ledger of a wallet in creation order.
func (r *TransactionRepository) ListAllByWallet(ctx context.Context, tx *gorm.DB, walletID int64) ([]*model.WalletTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var transactions []*model.WalletTransaction
	err := tx.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

// ListPendingBefore returns PENDING entries of txnType created before cutoff.
func (r *TransactionRepository) ListPendingBefore(ctx context.Context, txnType string, cutoff time.Time, limit int) ([]*model.WalletTransaction, error) {
	var transactions []*model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ? AND created_at < ?", txnType, model.TransactionStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
