package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignledger/internal/model"
	"campaignledger/internal/testkit"
)

const racers = 16

// race runs fn from racers goroutines released together and returns their errors.
func race(fn func(i int) error) []error {
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestIncrementReservationsRaceAcrossConnections(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewPooledDB(t, racers)
	repo := NewCampaignRepository(db)
	seedCampaign(t, db, "CMP1", 5)

	errs := race(func(int) error {
		return repo.IncrementReservations(ctx, db, "CMP1")
	})

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrQuotaFull)
	}
	assert.Equal(t, 5, ok)

	campaign, err := repo.GetByID(ctx, nil, "CMP1")
	require.NoError(t, err)
	assert.Equal(t, 5, campaign.CurrentReservations)
}

func seedWallet(t *testing.T, repo *WalletRepository, userID, balance int64) *model.WalletAccount {
	t.Helper()
	ctx := context.Background()
	account, err := repo.GetOrCreate(ctx, userID, "USD")
	require.NoError(t, err)
	require.NoError(t, repo.ApplyDelta(ctx, repo.db, account, model.BalanceDelta{Balance: balance, Deposited: balance}))
	return account
}

func TestApplyDeltaStaleVersionRaceAcrossConnections(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewPooledDB(t, racers)
	repo := NewWalletRepository(db)
	seeded := seedWallet(t, repo, 1, 10000)

	// every racer holds the same snapshot, so only one version check can pass
	errs := race(func(int) error {
		snapshot := *seeded
		return repo.ApplyDelta(ctx, db, &snapshot, model.BalanceDelta{Balance: -100, Spent: 100})
	})

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrOptimisticLock)
	}
	assert.Equal(t, 1, ok)

	account, err := repo.GetByUserID(ctx, nil, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 9900, account.BalanceMinor)
	assert.EqualValues(t, 100, account.TotalSpentMinor)
	assert.Equal(t, seeded.Version+1, account.Version)
}

func TestApplyDeltaNeverOverdrawsAcrossConnections(t *testing.T) {
	ctx := context.Background()
	db := testkit.NewPooledDB(t, racers)
	repo := NewWalletRepository(db)
	seedWallet(t, repo, 2, 1000)

	errs := race(func(int) error {
		for attempt := 0; attempt < 200; attempt++ {
			account, err := repo.GetByUserID(ctx, nil, 2)
			if err != nil {
				return err
			}
			err = repo.ApplyDelta(ctx, db, account, model.BalanceDelta{Balance: -1000, Spent: 1000})
			if !errors.Is(err, ErrOptimisticLock) {
				return err
			}
		}
		return ErrOptimisticLock
	})

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrBalanceNotEnough)
	}
	assert.Equal(t, 1, ok)

	account, err := repo.GetByUserID(ctx, nil, 2)
	require.NoError(t, err)
	assert.Zero(t, account.BalanceMinor)
	assert.EqualValues(t, 1000, account.TotalSpentMinor)
}
