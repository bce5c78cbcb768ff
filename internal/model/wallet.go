package model

import (
	"time"
)

// WalletAccount is the per-user balance. Every column except Version is a
// projection of the completed entries in wallet_transaction.
type WalletAccount struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Currency              string    `gorm:"type:varchar(8);not null" json:"currency"`
	BalanceMinor          int64     `gorm:"not null;default:0" json:"balance_minor"`
	TotalDepositedMinor   int64     `gorm:"not null;default:0" json:"total_deposited_minor"`
	TotalSpentMinor       int64     `gorm:"not null;default:0" json:"total_spent_minor"`
	TotalEarnedMinor      int64     `gorm:"not null;default:0" json:"total_earned_minor"`
	TotalTaxWithheldMinor int64     `gorm:"not null;default:0" json:"total_tax_withheld_minor"`
	Version               int       `gorm:"not null;default:0" json:"version"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletAccount) TableName() string {
	return "wallet_account"
}

// BalanceDelta is a signed change applied to a wallet in one conditional update.
type BalanceDelta struct {
	Balance     int64
	Deposited   int64
	Spent       int64
	Earned      int64
	TaxWithheld int64
}
