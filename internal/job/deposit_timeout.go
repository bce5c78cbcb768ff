package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"campaignledger/internal/config"
	"campaignledger/internal/metrics"
	"campaignledger/internal/model"
)

// StaleTransactionHandler is the part of the wallet service the timeout job drives.
type StaleTransactionHandler interface {
	StaleDeposits(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WalletTransaction, error)
	StaleWithdrawals(ctx context.Context, maxAge time.Duration, limit int) ([]*model.WalletTransaction, error)
}

// DepositTimeoutJob reports deposits and withdrawals still pending after
// business.deposit_timeout. It never settles them: the gateway and the payout
// processor own those outcomes.
type DepositTimeoutJob struct {
	handler   StaleTransactionHandler
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	maxAge    time.Duration
	batchSize int
}

func NewDepositTimeoutJob(handler StaleTransactionHandler, cfg *config.Config, logger *zap.Logger) *DepositTimeoutJob {
	return &DepositTimeoutJob{
		handler:   handler,
		logger:    logger.With(zap.String("job", "deposit_timeout")),
		stopCh:    make(chan struct{}),
		interval:  cfg.Business.SweepInterval,
		maxAge:    cfg.Business.DepositTimeout,
		batchSize: cfg.Business.SweepBatchSize,
	}
}

func (j *DepositTimeoutJob) Start(ctx context.Context) {
	j.logger.Info("deposit timeout job started", zap.Duration("max_age", j.maxAge))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("deposit timeout job exiting", zap.Error(ctx.Err()))
			return
		case <-j.stopCh:
			j.logger.Info("deposit timeout job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *DepositTimeoutJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// RunOnce returns the number of stale transactions it reported.
func (j *DepositTimeoutJob) RunOnce(ctx context.Context) int {
	reported := 0

	deposits, err := j.handler.StaleDeposits(ctx, j.maxAge, j.batchSize)
	if err != nil {
		j.logger.Error("list stale deposits", zap.Error(err))
	} else {
		reported += j.report(model.TransactionTypeDeposit, deposits)
	}

	withdrawals, err := j.handler.StaleWithdrawals(ctx, j.maxAge, j.batchSize)
	if err != nil {
		j.logger.Error("list stale withdrawals", zap.Error(err))
	} else {
		reported += j.report(model.TransactionTypeWithdrawal, withdrawals)
	}
	return reported
}

func (j *DepositTimeoutJob) report(txnType string, stale []*model.WalletTransaction) int {
	metrics.StalePendingTransactions.WithLabelValues(txnType).Set(float64(len(stale)))
	for _, t := range stale {
		j.logger.Warn("transaction still pending",
			zap.String("type", txnType),
			zap.String("transaction_id", t.ID),
			zap.Int64("user_id", t.UserID),
			zap.Int64("amount_minor", t.AmountMinor),
			zap.Time("created_at", t.CreatedAt))
	}
	return len(stale)
}
