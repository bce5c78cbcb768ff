package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campaignledger/internal/config"
	"campaignledger/internal/model"
	"campaignledger/internal/payout"
	"campaignledger/internal/repository"
	"campaignledger/internal/testkit"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db           *gorm.DB
	cfg          *config.Config
	clock        *testkit.Clock
	wallet       *WalletService
	reservations *ReservationService
	campaigns    *CampaignService
}

func newFixture(t *testing.T, mutate ...func(cfg *config.Config)) *fixture {
	t.Helper()

	cfg := testkit.Config()
	for _, m := range mutate {
		m(cfg)
	}
	db := testkit.NewDB(t)
	_, client := testkit.NewRedis(t)
	locker := testkit.NewLocker(client)
	calc, err := payout.NewCalculatorFromConfig(cfg.Withholding, cfg.Pricing)
	require.NoError(t, err)

	clock := testkit.NewClock(t0)
	logger := zap.NewNop()

	wallet := NewWalletService(db, locker, calc, cfg, logger)
	wallet.SetClock(clock.Now)
	reservations := NewReservationService(db, locker, wallet, cfg, logger)
	reservations.SetClock(clock.Now)
	campaigns := NewCampaignService(db, calc, wallet, cfg, logger)
	campaigns.SetClock(clock.Now)

	return &fixture{
		db:           db,
		cfg:          cfg,
		clock:        clock,
		wallet:       wallet,
		reservations: reservations,
		campaigns:    campaigns,
	}
}

func (f *fixture) campaign(t *testing.T, quota int, payoutMinor int64) *model.Campaign {
	t.Helper()
	resp, err := f.campaigns.CreateCampaign(context.Background(), &CreateCampaignRequest{
		BrandID:           500,
		Title:             "Lombok villa stay",
		Quota:             quota,
		PayoutAmountMinor: payoutMinor,
		DeadlineAt:        t0.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return resp.Campaign
}

func (f *fixture) reload(t *testing.T, id string) *model.Campaign {
	t.Helper()
	c, err := repository.NewCampaignRepository(f.db).GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return c
}

func (f *fixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	ctx := context.Background()
	dep, err := f.wallet.Deposit(ctx, userID, amount)
	require.NoError(t, err)
	_, err = f.wallet.ConfirmDeposit(ctx, dep.ID, OutcomeSucceeded)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	account, err := f.wallet.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return account.BalanceMinor
}

func (f *fixture) requireReconciled(t *testing.T, userID int64) *ReconcileReport {
	t.Helper()
	report, err := f.wallet.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "stored %+v expected %+v", report.Stored, report.Expected)
	return report
}

func (f *fixture) outboxEvents(t *testing.T) []string {
	t.Helper()
	var msgs []*model.OutboxMessage
	require.NoError(t, f.db.Order("id ASC").Find(&msgs).Error)
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.EventType)
	}
	return types
}
