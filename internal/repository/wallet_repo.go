package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campaignledger/internal/model"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.WalletAccount, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.WalletAccount
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetOrCreate opens a zero-balance wallet on first use. Concurrent callers race
// on the unique user_id index; the loser's insert is a no-op.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64, currency string) (*model.WalletAccount, error) {
	account, err := r.GetByUserID(ctx, nil, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	newAccount := &model.WalletAccount{
		UserID:   userID,
		Currency: currency,
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, nil, userID)
}

// ApplyDelta adds delta to the wallet in one statement, guarded by the version
// read by the caller and by the new balance staying non-negative. On success
// account is updated in place to the new state.
func (r *WalletRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, account *model.WalletAccount, delta model.BalanceDelta) error {
	result := tx.WithContext(ctx).
		Model(&model.WalletAccount{}).
		Where("id = ? AND version = ? AND balance_minor + ? >= 0", account.ID, account.Version, delta.Balance).
		Updates(map[string]interface{}{
			"balance_minor":            gorm.Expr("balance_minor + ?", delta.Balance),
			"total_deposited_minor":    gorm.Expr("total_deposited_minor + ?", delta.Deposited),
			"total_spent_minor":        gorm.Expr("total_spent_minor + ?", delta.Spent),
			"total_earned_minor":       gorm.Expr("total_earned_minor + ?", delta.Earned),
			"total_tax_withheld_minor": gorm.Expr("total_tax_withheld_minor + ?", delta.TaxWithheld),
			"version":                  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		current, err := r.GetByUserID(ctx, tx, account.UserID)
		if err != nil {
			return err
		}
		if current.Version == account.Version && current.BalanceMinor+delta.Balance < 0 {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	account.BalanceMinor += delta.Balance
	account.TotalDepositedMinor += delta.Deposited
	account.TotalSpentMinor += delta.Spent
	account.TotalEarnedMinor += delta.Earned
	account.TotalTaxWithheldMinor += delta.TaxWithheld
	account.Version++
	return nil
}
