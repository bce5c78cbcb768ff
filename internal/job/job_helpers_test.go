package job

import (
	"testing"

	"github.com/stretchr/testify/require"

	"campaignledger/internal/config"
	"campaignledger/internal/payout"
)

func testkitCalculator(t *testing.T, cfg *config.Config) *payout.Calculator {
	t.Helper()
	calc, err := payout.NewCalculatorFromConfig(cfg.Withholding, cfg.Pricing)
	require.NoError(t, err)
	return calc
}
