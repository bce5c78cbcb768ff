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

// ReservationExpirer is the part of the reservation service the sweeper drives.
type ReservationExpirer interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	Expire(ctx context.Context, reservation *model.Reservation, now time.Time) (bool, error)
}

type SweepResult struct {
	Expired int
	Skipped int
	Failed  int
}

// ExpirySweeper reclaims the slots of holds that passed their expiry without
// a submission. Every tick drains all overdue holds, batch by batch.
type ExpirySweeper struct {
	expirer   ReservationExpirer
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewExpirySweeper(expirer ReservationExpirer, cfg *config.Config, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		expirer:   expirer,
		logger:    logger.With(zap.String("job", "expiry_sweeper")),
		stopCh:    make(chan struct{}),
		interval:  cfg.Business.SweepInterval,
		batchSize: cfg.Business.SweepBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (j *ExpirySweeper) SetClock(now func() time.Time) {
	j.now = now
}

// Start blocks until ctx is done or Stop is called.
func (j *ExpirySweeper) Start(ctx context.Context) {
	j.logger.Info("expiry sweeper started", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("expiry sweeper exiting", zap.Error(ctx.Err()))
			return
		case <-j.stopCh:
			j.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := j.SweepOnce(ctx); err != nil {
				j.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

func (j *ExpirySweeper) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// SweepOnce expires every hold overdue at the time of the call. A hold that
// fails is logged and left for the next tick.
func (j *ExpirySweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var total SweepResult
	now := j.now()
	failed := make(map[string]struct{})

	for {
		batch, err := j.expirer.ListExpired(ctx, now, j.batchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		expired := 0
		for _, r := range batch {
			ok, err := j.expirer.Expire(ctx, r, now)
			switch {
			case err != nil:
				failed[r.ID] = struct{}{}
				metrics.SweeperFailures.Inc()
				j.logger.Warn("expire reservation failed",
					zap.String("reservation_id", r.ID),
					zap.String("campaign_id", r.CampaignID),
					zap.Error(err))
			case ok:
				expired++
				metrics.SweeperExpired.Inc()
			default:
				total.Skipped++
			}
		}
		total.Expired += expired

		// a short batch was the last one; a batch without progress would
		// be listed again unchanged
		if len(batch) < j.batchSize || expired == 0 {
			break
		}
	}
	total.Failed = len(failed)

	if total.Expired > 0 || total.Failed > 0 {
		j.logger.Info("sweep finished",
			zap.Int("expired", total.Expired),
			zap.Int("skipped", total.Skipped),
			zap.Int("failed", total.Failed))
	}
	return total, nil
}
