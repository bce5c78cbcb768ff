package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campaignledger/internal/config"
	"campaignledger/internal/infrastructure/lock"
	"campaignledger/internal/metrics"
	"campaignledger/internal/model"
	"campaignledger/internal/payout"
	"campaignledger/internal/repository"
	"campaignledger/pkg/idgen"
)

// Payment gateway outcomes for deposit and withdrawal callbacks.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// WalletTxFunc runs inside a wallet's DB transaction with the account as read
// in that transaction.
type WalletTxFunc func(tx *gorm.DB, account *model.WalletAccount) error

type WalletService struct {
	db              *gorm.DB
	cfg             *config.Config
	locker          Locker
	calc            *payout.Calculator
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	events          eventWriter
	logger          *zap.Logger
	now             func() time.Time
}

func NewWalletService(db *gorm.DB, locker Locker, calc *payout.Calculator, cfg *config.Config, logger *zap.Logger) *WalletService {
	return &WalletService{
		db:              db,
		cfg:             cfg,
		locker:          locker,
		calc:            calc,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		events:          eventWriter{outboxRepo: repository.NewOutboxRepository(db)},
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *WalletService) SetClock(now func() time.Time) {
	s.now = now
}

type EarningRequest struct {
	UserID           int64
	GrossAmountMinor int64
	ReservationID    string
	CountryCode      string
}

type ChargeRequest struct {
	UserID      int64
	AmountMinor int64
	Remark      string
}

// LedgerTotals are the balance columns of a wallet.
type LedgerTotals struct {
	BalanceMinor          int64 `json:"balance_minor"`
	TotalDepositedMinor   int64 `json:"total_deposited_minor"`
	TotalSpentMinor       int64 `json:"total_spent_minor"`
	TotalEarnedMinor      int64 `json:"total_earned_minor"`
	TotalTaxWithheldMinor int64 `json:"total_tax_withheld_minor"`
}

type ReconcileReport struct {
	UserID     int64        `json:"user_id"`
	Stored     LedgerTotals `json:"stored"`
	Expected   LedgerTotals `json:"expected"`
	Entries    int          `json:"entries"`
	Consistent bool         `json:"consistent"`
}

// ComputeTotals folds a wallet's transaction log into the balance columns it
// implies. Pending withdrawals already hold their funds; failed entries count
// for nothing.
func ComputeTotals(entries []*model.WalletTransaction) LedgerTotals {
	var t LedgerTotals
	for _, e := range entries {
		switch e.Status {
		case model.TransactionStatusCompleted:
			t.BalanceMinor += e.SignedAmount()
			switch e.Type {
			case model.TransactionTypeDeposit:
				t.TotalDepositedMinor += e.AmountMinor
			case model.TransactionTypeWithdrawal, model.TransactionTypeDeduction:
				t.TotalSpentMinor += e.AmountMinor
			case model.TransactionTypeEarning:
				t.TotalEarnedMinor += e.GrossAmountMinor
				t.TotalTaxWithheldMinor += e.TaxWithheldMinor
			}
		case model.TransactionStatusPending:
			if e.Type == model.TransactionTypeWithdrawal {
				t.BalanceMinor -= e.AmountMinor
			}
		}
	}
	return t
}

func totalsOf(a *model.WalletAccount) LedgerTotals {
	return LedgerTotals{
		BalanceMinor:          a.BalanceMinor,
		TotalDepositedMinor:   a.TotalDepositedMinor,
		TotalSpentMinor:       a.TotalSpentMinor,
		TotalEarnedMinor:      a.TotalEarnedMinor,
		TotalTaxWithheldMinor: a.TotalTaxWithheldMinor,
	}
}

// UpdateWallet is the single write path of a wallet. It holds the wallet lock,
// opens the wallet on first use and runs fn in a DB transaction. Version
// conflicts roll the transaction back and rerun fn with backoff; when retries
// run out the result is ErrTransientConflict.
func (s *WalletService) UpdateWallet(ctx context.Context, userID int64, fn WalletTxFunc) error {
	release, err := acquire(ctx, s.locker, lock.WalletKey(userID))
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Business.Currency); err != nil {
		return fmt.Errorf("open wallet: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			account, err := s.walletRepo.GetByUserID(ctx, tx, userID)
			if err != nil {
				return err
			}
			return fn(tx, account)
		})
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, repository.ErrOptimisticLock):
			metrics.OptimisticRetries.Inc()
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.cfg.Business.CASMaxRetries)))

	if errors.Is(err, repository.ErrOptimisticLock) {
		return fmt.Errorf("%w: wallet of user %d", ErrTransientConflict, userID)
	}
	return err
}

func (s *WalletService) GetAccount(ctx context.Context, userID int64) (*model.WalletAccount, error) {
	if userID <= 0 {
		return nil, ErrInvalidArgument
	}
	return s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Business.Currency)
}

// Deposit records a pending deposit. The balance moves only when the gateway
// confirms it.
func (s *WalletService) Deposit(ctx context.Context, userID int64, amountMinor int64) (trans *model.WalletTransaction, err error) {
	defer func() { metrics.WalletOperations.WithLabelValues("deposit", metrics.Outcome(err)).Inc() }()

	if userID <= 0 {
		return nil, ErrInvalidArgument
	}
	if amountMinor < s.cfg.Business.MinDeposit {
		return nil, fmt.Errorf("%w: deposit %d < %d", ErrBelowMinimum, amountMinor, s.cfg.Business.MinDeposit)
	}
	if amountMinor > s.cfg.Business.MaxDeposit {
		return nil, fmt.Errorf("%w: deposit %d > %d", ErrAboveMaximum, amountMinor, s.cfg.Business.MaxDeposit)
	}

	account, err := s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Business.Currency)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}

	trans = &model.WalletTransaction{
		ID:          idgen.GenerateTransactionID(),
		WalletID:    account.ID,
		UserID:      userID,
		Type:        model.TransactionTypeDeposit,
		AmountMinor: amountMinor,
		Status:      model.TransactionStatusPending,
		Remark:      "deposit",
		CreatedAt:   s.now(),
	}
	if err := s.transactionRepo.Create(ctx, nil, trans); err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}

	s.logger.Info("deposit pending",
		zap.String("transaction_id", trans.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount_minor", amountMinor))
	return trans, nil
}

func (s *WalletService) ConfirmDeposit(ctx context.Context, transactionID string, outcome string) (*model.WalletTransaction, error) {
	trans, err := s.settle(ctx, transactionID, model.TransactionTypeDeposit, outcome)
	metrics.WalletOperations.WithLabelValues("confirm_deposit", metrics.Outcome(err)).Inc()
	return trans, err
}

// Withdraw takes the amount out of the balance at once and records a pending
// withdrawal for the payout processor.
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amountMinor int64) (trans *model.WalletTransaction, err error) {
	defer func() { metrics.WalletOperations.WithLabelValues("withdraw", metrics.Outcome(err)).Inc() }()

	if userID <= 0 {
		return nil, ErrInvalidArgument
	}
	if amountMinor < s.cfg.Business.MinWithdraw {
		return nil, fmt.Errorf("%w: withdrawal %d < %d", ErrBelowMinimum, amountMinor, s.cfg.Business.MinWithdraw)
	}

	err = s.UpdateWallet(ctx, userID, func(tx *gorm.DB, account *model.WalletAccount) error {
		if account.BalanceMinor < amountMinor {
			return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientBalance, account.BalanceMinor, amountMinor)
		}
		if err := s.applyDelta(ctx, tx, account, model.BalanceDelta{Balance: -amountMinor}); err != nil {
			return err
		}

		trans = &model.WalletTransaction{
			ID:          idgen.GenerateTransactionID(),
			WalletID:    account.ID,
			UserID:      userID,
			Type:        model.TransactionTypeWithdrawal,
			AmountMinor: amountMinor,
			Status:      model.TransactionStatusPending,
			Remark:      "withdrawal",
			CreatedAt:   s.now(),
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal pending",
		zap.String("transaction_id", trans.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount_minor", amountMinor))
	return trans, nil
}

func (s *WalletService) ConfirmWithdrawal(ctx context.Context, transactionID string, outcome string) (*model.WalletTransaction, error) {
	trans, err := s.settle(ctx, transactionID, model.TransactionTypeWithdrawal, outcome)
	metrics.WalletOperations.WithLabelValues("confirm_withdrawal", metrics.Outcome(err)).Inc()
	return trans, err
}

// CreditEarning pays a creator for an approved reservation, net of the tax
// withheld for their country. A reservation is credited at most once.
func (s *WalletService) CreditEarning(ctx context.Context, req EarningRequest) (trans *model.WalletTransaction, err error) {
	defer func() { metrics.WalletOperations.WithLabelValues("credit_earning", metrics.Outcome(err)).Inc() }()

	err = s.UpdateWallet(ctx, req.UserID, func(tx *gorm.DB, account *model.WalletAccount) error {
		trans, err = s.creditEarning(ctx, tx, account, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trans, nil
}

// Charge debits a completed deduction, e.g. a campaign budget.
func (s *WalletService) Charge(ctx context.Context, req ChargeRequest) (trans *model.WalletTransaction, err error) {
	defer func() { metrics.WalletOperations.WithLabelValues("charge", metrics.Outcome(err)).Inc() }()

	err = s.UpdateWallet(ctx, req.UserID, func(tx *gorm.DB, account *model.WalletAccount) error {
		trans, err = s.charge(ctx, tx, account, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trans, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID int64, txnType string, page, pageSize int) ([]*model.WalletTransaction, int64, error) {
	txnType = model.NormalizeStatus(txnType)
	if userID <= 0 || (txnType != "" && !model.IsValidTransactionType(txnType)) {
		return nil, 0, ErrInvalidArgument
	}
	return s.transactionRepo.ListByUserID(ctx, userID, txnType, page, pageSize)
}

// Reconcile recomputes the wallet from its transaction log and compares the
// result with the stored columns.
func (s *WalletService) Reconcile(ctx context.Context, userID int64) (*ReconcileReport, error) {
	if userID <= 0 {
		return nil, ErrInvalidArgument
	}

	report := &ReconcileReport{UserID: userID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.walletRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		entries, err := s.transactionRepo.ListAllByWallet(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		report.Stored = totalsOf(account)
		report.Expected = ComputeTotals(entries)
		report.Entries = len(entries)
		return nil
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		report.Consistent = true
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reconcile wallet of user %d: %w", userID, err)
	}

	report.Consistent = report.Stored == report.Expected
	if !report.Consistent {
		s.logger.Error("wallet drift detected",
			zap.Int64("user_id", userID),
			zap.Any("stored", report.Stored),
			zap.Any("expected", report.Expected))
	}
	return report, nil
}

// StaleDeposits lists pending deposits older than maxAge. Only the gateway
// callback settles a deposit, so they are reported and stay pending.
func (s *WalletService) StaleDeposits(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WalletTransaction, error) {
	return s.transactionRepo.ListPendingBefore(ctx, model.TransactionTypeDeposit, s.now().Add(-maxAge), limit)
}

// StaleWithdrawals lists pending withdrawals older than maxAge. The payout
// processor owns their outcome, so they are only reported.
func (s *WalletService) StaleWithdrawals(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WalletTransaction, error) {
	return s.transactionRepo.ListPendingBefore(ctx, model.TransactionTypeWithdrawal, s.now().Add(-maxAge), limit)
}

func (s *WalletService) creditEarning(ctx context.Context, tx *gorm.DB, account *model.WalletAccount, req EarningRequest) (*model.WalletTransaction, error) {
	if req.GrossAmountMinor <= 0 || req.ReservationID == "" {
		return nil, ErrInvalidArgument
	}

	p := s.calc.Apply(req.GrossAmountMinor, req.CountryCode)
	now := s.now()
	reservationID := req.ReservationID
	trans := &model.WalletTransaction{
		ID:                   idgen.GenerateTransactionID(),
		WalletID:             account.ID,
		UserID:               account.UserID,
		Type:                 model.TransactionTypeEarning,
		AmountMinor:          p.NetMinor,
		GrossAmountMinor:     p.GrossMinor,
		TaxWithheldMinor:     p.TaxWithheldMinor,
		Status:               model.TransactionStatusCompleted,
		RelatedReservationID: &reservationID,
		Remark:               fmt.Sprintf("earning for reservation %s, withholding %s", reservationID, p.Rate.String()),
		CreatedAt:            now,
		CompletedAt:          &now,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: reservation %s already credited", ErrTransactionSettled, reservationID)
		}
		return nil, fmt.Errorf("create earning: %w", err)
	}

	delta := model.BalanceDelta{
		Balance:     p.NetMinor,
		Earned:      p.GrossMinor,
		TaxWithheld: p.TaxWithheldMinor,
	}
	if err := s.applyDelta(ctx, tx, account, delta); err != nil {
		return nil, err
	}

	err := s.events.write(ctx, tx, s.cfg.Kafka.Topic.WalletEvents, walletKey(account.UserID), EventEarningCredited, now, trans)
	if err != nil {
		return nil, err
	}
	return trans, nil
}

func (s *WalletService) charge(ctx context.Context, tx *gorm.DB, account *model.WalletAccount, req ChargeRequest) (*model.WalletTransaction, error) {
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidArgument
	}
	if account.BalanceMinor < req.AmountMinor {
		return nil, fmt.Errorf("%w: balance %d, charge %d", ErrInsufficientBalance, account.BalanceMinor, req.AmountMinor)
	}

	if err := s.applyDelta(ctx, tx, account, model.BalanceDelta{Balance: -req.AmountMinor, Spent: req.AmountMinor}); err != nil {
		return nil, err
	}

	now := s.now()
	trans := &model.WalletTransaction{
		ID:          idgen.GenerateTransactionID(),
		WalletID:    account.ID,
		UserID:      account.UserID,
		Type:        model.TransactionTypeDeduction,
		AmountMinor: req.AmountMinor,
		Status:      model.TransactionStatusCompleted,
		Remark:      req.Remark,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("create deduction: %w", err)
	}
	return trans, nil
}

// settle applies a gateway outcome to a pending deposit or withdrawal.
// Replaying the outcome a transaction already has returns it unchanged.
func (s *WalletService) settle(ctx context.Context, transactionID, txnType, outcome string) (*model.WalletTransaction, error) {
	var target string
	switch outcome {
	case OutcomeSucceeded:
		target = model.TransactionStatusCompleted
	case OutcomeFailed:
		target = model.TransactionStatusFailed
	default:
		return nil, fmt.Errorf("%w: outcome %q", ErrInvalidArgument, outcome)
	}

	trans, err := s.transactionRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if trans.Type != txnType {
		return nil, fmt.Errorf("%w: transaction %s is a %s", ErrInvalidArgument, transactionID, trans.Type)
	}

	var settled *model.WalletTransaction
	err = s.UpdateWallet(ctx, trans.UserID, func(tx *gorm.DB, account *model.WalletAccount) error {
		current, err := s.transactionRepo.GetByID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if current.Status != model.TransactionStatusPending {
			if current.Status == target {
				settled = current
				return nil
			}
			return fmt.Errorf("%w: %s is %s", ErrTransactionSettled, transactionID, current.Status)
		}

		now := s.now()
		if err := s.transactionRepo.Settle(ctx, tx, transactionID, target, now); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return repository.ErrOptimisticLock
			}
			return err
		}

		if delta, ok := settlementDelta(current, target); ok {
			if err := s.applyDelta(ctx, tx, account, delta); err != nil {
				return err
			}
		}

		current.Status = target
		current.CompletedAt = &now
		if err := s.events.write(ctx, tx, s.cfg.Kafka.Topic.WalletEvents, walletKey(current.UserID), settlementEvent(current), now, current); err != nil {
			return err
		}
		settled = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction settled",
		zap.String("transaction_id", settled.ID),
		zap.String("type", settled.Type),
		zap.String("status", settled.Status))
	return settled, nil
}

func (s *WalletService) applyDelta(ctx context.Context, tx *gorm.DB, account *model.WalletAccount, delta model.BalanceDelta) error {
	err := s.walletRepo.ApplyDelta(ctx, tx, account, delta)
	if errors.Is(err, repository.ErrBalanceNotEnough) {
		return ErrInsufficientBalance
	}
	return err
}

func settlementDelta(trans *model.WalletTransaction, target string) (model.BalanceDelta, bool) {
	switch {
	case trans.Type == model.TransactionTypeDeposit && target == model.TransactionStatusCompleted:
		return model.BalanceDelta{Balance: trans.AmountMinor, Deposited: trans.AmountMinor}, true
	case trans.Type == model.TransactionTypeWithdrawal && target == model.TransactionStatusCompleted:
		return model.BalanceDelta{Spent: trans.AmountMinor}, true
	case trans.Type == model.TransactionTypeWithdrawal && target == model.TransactionStatusFailed:
		// the funds taken at request time go back
		return model.BalanceDelta{Balance: trans.AmountMinor}, true
	}
	return model.BalanceDelta{}, false
}

func settlementEvent(trans *model.WalletTransaction) string {
	completed := trans.Status == model.TransactionStatusCompleted
	switch {
	case trans.Type == model.TransactionTypeDeposit && completed:
		return EventDepositCompleted
	case trans.Type == model.TransactionTypeDeposit:
		return EventDepositFailed
	case completed:
		return EventWithdrawalCompleted
	default:
		return EventWithdrawalFailed
	}
}

func walletKey(userID int64) string {
	return fmt.Sprintf("wallet:%d", userID)
}
