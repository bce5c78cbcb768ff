package model

import (
	"time"
)

const (
	TransactionTypeDeposit    = "DEPOSIT"
	TransactionTypeDeduction  = "DEDUCTION"
	TransactionTypeEarning    = "EARNING"
	TransactionTypeWithdrawal = "WITHDRAWAL"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

func IsValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeDeduction, TransactionTypeEarning, TransactionTypeWithdrawal:
		return true
	}
	return false
}

// WalletTransaction is one entry of the append-only wallet ledger.
//
// AmountMinor is always positive; SignedAmount derives the direction from Type.
// Rows are never deleted and only PENDING rows may change status, once.
type WalletTransaction struct {
	ID                   string     `gorm:"type:varchar(32);primaryKey" json:"id"`
	WalletID             int64      `gorm:"index;not null" json:"wallet_id"`
	UserID               int64      `gorm:"index;not null" json:"user_id"`
	Type                 string     `gorm:"type:varchar(20);index;not null" json:"type"`
	AmountMinor          int64      `gorm:"not null" json:"amount_minor"`
	GrossAmountMinor     int64      `gorm:"not null;default:0" json:"gross_amount_minor"`
	TaxWithheldMinor     int64      `gorm:"not null;default:0" json:"tax_withheld_minor"`
	Status               string     `gorm:"type:varchar(20);index;not null" json:"status"`
	RelatedReservationID *string    `gorm:"type:varchar(32);uniqueIndex" json:"related_reservation_id"`
	Remark               string     `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt            time.Time  `gorm:"index;not null" json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}

// SignedAmount is the entry's effect on the balance once completed.
func (t *WalletTransaction) SignedAmount() int64 {
	switch t.Type {
	case TransactionTypeWithdrawal, TransactionTypeDeduction:
		return -t.AmountMinor
	default:
		return t.AmountMinor
	}
}
