package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignledger/internal/config"
)

func newDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(map[string]decimal.Decimal{
		"id": newDecimal("0.20"),
		"PH": newDecimal("0.125"),
	}, newDecimal("0.05"), newDecimal("0.10"))
	require.NoError(t, err)
	return c
}

func TestApply_TwentyPercentWithholding(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Apply(12000, "ID")

	assert.Equal(t, int64(12000), p.GrossMinor)
	assert.Equal(t, int64(9600), p.NetMinor)
	assert.Equal(t, int64(2400), p.TaxWithheldMinor)
	assert.True(t, p.Rate.Equal(newDecimal("0.20")))
}

func TestApply_CountryIsCaseInsensitive(t *testing.T) {
	c := newTestCalculator(t)
	assert.Equal(t, c.Apply(5000, "ID"), c.Apply(5000, " id "))
}

func TestApply_FallsBackToDefaultRate(t *testing.T) {
	c := newTestCalculator(t)

	p := c.Apply(10000, "BR")
	assert.Equal(t, int64(500), p.TaxWithheldMinor)
	assert.Equal(t, int64(9500), p.NetMinor)

	p = c.Apply(10000, "")
	assert.Equal(t, int64(500), p.TaxWithheldMinor)
}

func TestApply_RoundsHalfAwayFromZero(t *testing.T) {
	c := newTestCalculator(t)

	// 12.5% of 1004 = 125.5 -> 126
	p := c.Apply(1004, "PH")
	assert.Equal(t, int64(126), p.TaxWithheldMinor)
	assert.Equal(t, int64(878), p.NetMinor)

	// 12.5% of 1003 = 125.375 -> 125
	p = c.Apply(1003, "PH")
	assert.Equal(t, int64(125), p.TaxWithheldMinor)
}

func TestApply_NetPlusTaxEqualsGross(t *testing.T) {
	c := newTestCalculator(t)
	for _, gross := range []int64{0, 1, 3, 7, 999, 12345, 100000001} {
		for _, country := range []string{"ID", "PH", "XX"} {
			p := c.Apply(gross, country)
			assert.Equal(t, gross, p.NetMinor+p.TaxWithheldMinor, "gross=%d country=%s", gross, country)
			assert.GreaterOrEqual(t, p.NetMinor, int64(0))
		}
	}
}

func TestNewCalculator_RejectsRatesOutsideUnitInterval(t *testing.T) {
	_, err := NewCalculator(map[string]decimal.Decimal{"US": newDecimal("1.5")}, decimal.Zero, decimal.Zero)
	require.Error(t, err)

	_, err = NewCalculator(nil, newDecimal("-0.1"), decimal.Zero)
	require.Error(t, err)
}

func TestNewCalculatorFromConfig(t *testing.T) {
	c, err := NewCalculatorFromConfig(
		config.WithholdingConfig{DefaultRate: "0", Rates: map[string]string{"th": "0.15"}},
		config.PricingConfig{PlatformFeeRate: "0.10"},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(150), c.Apply(1000, "TH").TaxWithheldMinor)
	assert.Equal(t, int64(0), c.Apply(1000, "US").TaxWithheldMinor)

	_, err = NewCalculatorFromConfig(
		config.WithholdingConfig{DefaultRate: "abc"},
		config.PricingConfig{},
	)
	require.Error(t, err)
}

func TestQuote(t *testing.T) {
	c := newTestCalculator(t)

	q, err := c.Quote(25000, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), q.SubtotalMinor)
	assert.Equal(t, int64(10000), q.PlatformFeeMinor)
	assert.Equal(t, int64(110000), q.TotalMinor)

	_, err = c.Quote(0, 4)
	require.Error(t, err)
	_, err = c.Quote(100, 0)
	require.Error(t, err)
}
