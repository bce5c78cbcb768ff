package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignledger/internal/model"
)

func TestDepositBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Deposit(ctx, 1, 999)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	_, err = f.wallet.Deposit(ctx, 1, 100000001)
	assert.ErrorIs(t, err, ErrAboveMaximum)
	_, err = f.wallet.Deposit(ctx, 0, 5000)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	dep, err := f.wallet.Deposit(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, dep.Status)
	assert.EqualValues(t, 0, f.balance(t, 1))
}

func TestConfirmDepositIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep, err := f.wallet.Deposit(ctx, 1, 50000)
	require.NoError(t, err)

	first, err := f.wallet.ConfirmDeposit(ctx, dep.ID, OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, first.Status)

	again, err := f.wallet.ConfirmDeposit(ctx, dep.ID, OutcomeSucceeded)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, again.Status)
	assert.EqualValues(t, 50000, f.balance(t, 1))

	_, err = f.wallet.ConfirmDeposit(ctx, dep.ID, OutcomeFailed)
	assert.ErrorIs(t, err, ErrTransactionSettled)
	assert.EqualValues(t, 50000, f.balance(t, 1))

	_, err = f.wallet.ConfirmDeposit(ctx, "WTX404", OutcomeSucceeded)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	_, err = f.wallet.ConfirmDeposit(ctx, dep.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.wallet.ConfirmWithdrawal(ctx, dep.ID, OutcomeSucceeded)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	f.requireReconciled(t, 1)
}

func TestFailedDepositLeavesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dep, err := f.wallet.Deposit(ctx, 1, 50000)
	require.NoError(t, err)
	_, err = f.wallet.ConfirmDeposit(ctx, dep.ID, OutcomeFailed)
	require.NoError(t, err)

	account, err := f.wallet.GetAccount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, account.BalanceMinor)
	assert.EqualValues(t, 0, account.TotalDepositedMinor)
	assert.Equal(t, []string{EventDepositFailed}, f.outboxEvents(t))
}

func TestDepositWithdrawFailRestores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 7, 50000)
	assert.EqualValues(t, 50000, f.balance(t, 7))

	wd, err := f.wallet.Withdraw(ctx, 7, 20000)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, wd.Status)
	assert.EqualValues(t, 30000, f.balance(t, 7))
	f.requireReconciled(t, 7)

	_, err = f.wallet.ConfirmWithdrawal(ctx, wd.ID, OutcomeFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 50000, f.balance(t, 7))

	account, err := f.wallet.GetAccount(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 0, account.TotalSpentMinor)
	f.requireReconciled(t, 7)

	// a failed withdrawal cannot be completed afterwards
	_, err = f.wallet.ConfirmWithdrawal(ctx, wd.ID, OutcomeSucceeded)
	assert.ErrorIs(t, err, ErrTransactionSettled)
	assert.EqualValues(t, 50000, f.balance(t, 7))
}

func TestCompletedWithdrawalCountsAsSpent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, 7, 50000)
	wd, err := f.wallet.Withdraw(ctx, 7, 20000)
	require.NoError(t, err)
	_, err = f.wallet.ConfirmWithdrawal(ctx, wd.ID, OutcomeSucceeded)
	require.NoError(t, err)

	account, err := f.wallet.GetAccount(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 30000, account.BalanceMinor)
	assert.EqualValues(t, 20000, account.TotalSpentMinor)
	f.requireReconciled(t, 7)
}

func TestWithdrawGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Withdraw(ctx, 7, 4999)
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = f.wallet.Withdraw(ctx, 7, 5000)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	f.fund(t, 7, 5000)
	_, err = f.wallet.Withdraw(ctx, 7, 5001)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.EqualValues(t, 5000, f.balance(t, 7))
}

func TestConcurrentFullBalanceWithdrawals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 7, 10000)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.wallet.Withdraw(ctx, 7, 10000)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	for _, err := range failures {
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	}
	assert.EqualValues(t, 0, f.balance(t, 7))
	f.requireReconciled(t, 7)
}

func TestCreditEarningWithholdsTax(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trans, err := f.wallet.CreditEarning(ctx, EarningRequest{
		UserID:           42,
		GrossAmountMinor: 12000,
		ReservationID:    "RSV1",
		CountryCode:      "ID",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 9600, trans.AmountMinor)
	assert.EqualValues(t, 12000, trans.GrossAmountMinor)
	assert.EqualValues(t, 2400, trans.TaxWithheldMinor)
	assert.Equal(t, model.TransactionStatusCompleted, trans.Status)

	account, err := f.wallet.GetAccount(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 9600, account.BalanceMinor)
	assert.EqualValues(t, 12000, account.TotalEarnedMinor)
	assert.EqualValues(t, 2400, account.TotalTaxWithheldMinor)

	_, err = f.wallet.CreditEarning(ctx, EarningRequest{UserID: 42, GrossAmountMinor: 12000, ReservationID: "RSV1", CountryCode: "ID"})
	assert.ErrorIs(t, err, ErrTransactionSettled)
	assert.EqualValues(t, 9600, f.balance(t, 42))
	f.requireReconciled(t, 42)
}

func TestChargeDeducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Charge(ctx, ChargeRequest{UserID: 3, AmountMinor: 100})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	f.fund(t, 3, 20000)
	trans, err := f.wallet.Charge(ctx, ChargeRequest{UserID: 3, AmountMinor: 7000, Remark: "boost"})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionTypeDeduction, trans.Type)
	assert.EqualValues(t, 13000, f.balance(t, 3))
	f.requireReconciled(t, 3)
}

// Mixed, partly concurrent traffic on one wallet must leave the stored
// balance equal to the one folded from the log.
func TestBalanceMatchesLedgerAfterMixedTraffic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const user = 11

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dep, err := f.wallet.Deposit(ctx, user, int64(10000+i*1000))
			if err != nil {
				return
			}
			outcome := OutcomeSucceeded
			if i%3 == 0 {
				outcome = OutcomeFailed
			}
			_, _ = f.wallet.ConfirmDeposit(ctx, dep.ID, outcome)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wd, err := f.wallet.Withdraw(ctx, user, 6000)
			if err != nil {
				return
			}
			outcome := OutcomeSucceeded
			if i%2 == 0 {
				outcome = OutcomeFailed
			}
			_, _ = f.wallet.ConfirmWithdrawal(ctx, wd.ID, outcome)
		}(i)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.wallet.CreditEarning(ctx, EarningRequest{
				UserID:           user,
				GrossAmountMinor: 3333,
				ReservationID:    "RSV-MIX-" + string(rune('A'+i)),
				CountryCode:      "PH",
			})
		}(i)
	}
	wg.Wait()

	// one withdrawal left pending on purpose
	_, err := f.wallet.Withdraw(ctx, user, 5000)
	if err != nil && !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("withdraw: %v", err)
	}

	report := f.requireReconciled(t, user)
	assert.GreaterOrEqual(t, report.Stored.BalanceMinor, int64(0))
	assert.Greater(t, report.Entries, 0)
}

func TestComputeTotals(t *testing.T) {
	entries := []*model.WalletTransaction{
		{Type: model.TransactionTypeDeposit, Status: model.TransactionStatusCompleted, AmountMinor: 50000},
		{Type: model.TransactionTypeDeposit, Status: model.TransactionStatusPending, AmountMinor: 1000},
		{Type: model.TransactionTypeDeposit, Status: model.TransactionStatusFailed, AmountMinor: 9000},
		{Type: model.TransactionTypeWithdrawal, Status: model.TransactionStatusPending, AmountMinor: 20000},
		{Type: model.TransactionTypeWithdrawal, Status: model.TransactionStatusCompleted, AmountMinor: 5000},
		{Type: model.TransactionTypeWithdrawal, Status: model.TransactionStatusFailed, AmountMinor: 7000},
		{Type: model.TransactionTypeEarning, Status: model.TransactionStatusCompleted, AmountMinor: 9600, GrossAmountMinor: 12000, TaxWithheldMinor: 2400},
		{Type: model.TransactionTypeDeduction, Status: model.TransactionStatusCompleted, AmountMinor: 600},
	}

	assert.Equal(t, LedgerTotals{
		BalanceMinor:          50000 - 20000 - 5000 + 9600 - 600,
		TotalDepositedMinor:   50000,
		TotalSpentMinor:       5600,
		TotalEarnedMinor:      12000,
		TotalTaxWithheldMinor: 2400,
	}, ComputeTotals(entries))
}

func TestStaleDepositsStayPendingUntilGatewayCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.wallet.Deposit(ctx, 1, 5000)
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)
	fresh, err := f.wallet.Deposit(ctx, 1, 5000)
	require.NoError(t, err)

	stale, err := f.wallet.StaleDeposits(ctx, 24*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
	assert.Equal(t, model.TransactionStatusPending, stale[0].Status)

	_, err = f.wallet.ConfirmDeposit(ctx, old.ID, OutcomeSucceeded)
	require.NoError(t, err)
	_, err = f.wallet.ConfirmDeposit(ctx, fresh.ID, OutcomeSucceeded)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, f.balance(t, 1))
	f.requireReconciled(t, 1)

	stale, err = f.wallet.StaleDeposits(ctx, 24*time.Hour, 100)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestReconcileUnknownWallet(t *testing.T) {
	f := newFixture(t)
	report, err := f.wallet.Reconcile(context.Background(), 999)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Zero(t, report.Entries)
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 5, 10000)
	_, err := f.wallet.Withdraw(ctx, 5, 5000)
	require.NoError(t, err)

	list, total, err := f.wallet.ListTransactions(ctx, 5, model.TransactionTypeWithdrawal, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	list, total, err = f.wallet.ListTransactions(ctx, 5, "withdrawal", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.TransactionTypeWithdrawal, list[0].Type)

	_, _, err = f.wallet.ListTransactions(ctx, 5, "REFUND", 1, 10)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
