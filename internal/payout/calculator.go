// Package payout holds the pure money math of the marketplace: tax withheld
// from creator earnings and the budget quote a brand pays for a campaign.
package payout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"campaignledger/internal/config"
)

// Payout is the split of a gross creator earning.
type Payout struct {
	GrossMinor       int64           `json:"gross_minor"`
	NetMinor         int64           `json:"net_minor"`
	TaxWithheldMinor int64           `json:"tax_withheld_minor"`
	Rate             decimal.Decimal `json:"rate"`
}

// Quote is the server-confirmed price of a campaign: payout per creator times
// creator count, plus the platform fee.
type Quote struct {
	PayoutPerCreatorMinor int64           `json:"payout_per_creator_minor"`
	CreatorCount          int             `json:"creator_count"`
	SubtotalMinor         int64           `json:"subtotal_minor"`
	PlatformFeeMinor      int64           `json:"platform_fee_minor"`
	TotalMinor            int64           `json:"total_minor"`
	PlatformFeeRate       decimal.Decimal `json:"platform_fee_rate"`
}

type Calculator struct {
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
	feeRate     decimal.Decimal
}

// NewCalculator validates every rate to lie within [0, 1]. Country codes are
// matched case-insensitively.
func NewCalculator(rates map[string]decimal.Decimal, defaultRate, platformFeeRate decimal.Decimal) (*Calculator, error) {
	if err := checkRate("default", defaultRate); err != nil {
		return nil, err
	}
	if err := checkRate("platform fee", platformFeeRate); err != nil {
		return nil, err
	}

	normalized := make(map[string]decimal.Decimal, len(rates))
	for country, rate := range rates {
		if err := checkRate(country, rate); err != nil {
			return nil, err
		}
		normalized[normalizeCountry(country)] = rate
	}

	return &Calculator{
		rates:       normalized,
		defaultRate: defaultRate,
		feeRate:     platformFeeRate,
	}, nil
}

// NewCalculatorFromConfig parses the string rates of the withholding and pricing sections.
func NewCalculatorFromConfig(w config.WithholdingConfig, p config.PricingConfig) (*Calculator, error) {
	defaultRate, err := parseRate("withholding.default_rate", w.DefaultRate)
	if err != nil {
		return nil, err
	}
	feeRate, err := parseRate("pricing.platform_fee_rate", p.PlatformFeeRate)
	if err != nil {
		return nil, err
	}

	rates := make(map[string]decimal.Decimal, len(w.Rates))
	for country, raw := range w.Rates {
		rate, err := parseRate("withholding.rates."+country, raw)
		if err != nil {
			return nil, err
		}
		rates[country] = rate
	}
	return NewCalculator(rates, defaultRate, feeRate)
}

// Rate returns the withholding rate for countryCode, or the default rate.
func (c *Calculator) Rate(countryCode string) decimal.Decimal {
	if rate, ok := c.rates[normalizeCountry(countryCode)]; ok {
		return rate
	}
	return c.defaultRate
}

// Apply splits grossMinor into net and withheld tax. Tax is rounded half away
// from zero to a whole minor unit; net is the exact remainder, so
// net + tax == gross always holds.
func (c *Calculator) Apply(grossMinor int64, countryCode string) Payout {
	rate := c.Rate(countryCode)
	tax := decimal.NewFromInt(grossMinor).Mul(rate).Round(0).IntPart()
	return Payout{
		GrossMinor:       grossMinor,
		NetMinor:         grossMinor - tax,
		TaxWithheldMinor: tax,
		Rate:             rate,
	}
}

func (c *Calculator) Quote(payoutPerCreatorMinor int64, creatorCount int) (Quote, error) {
	if payoutPerCreatorMinor <= 0 || creatorCount <= 0 {
		return Quote{}, fmt.Errorf("payout %d and creator count %d must be positive", payoutPerCreatorMinor, creatorCount)
	}
	subtotal := decimal.NewFromInt(payoutPerCreatorMinor).Mul(decimal.NewFromInt(int64(creatorCount)))
	fee := subtotal.Mul(c.feeRate).Round(0)
	return Quote{
		PayoutPerCreatorMinor: payoutPerCreatorMinor,
		CreatorCount:          creatorCount,
		SubtotalMinor:         subtotal.IntPart(),
		PlatformFeeMinor:      fee.IntPart(),
		TotalMinor:            subtotal.Add(fee).IntPart(),
		PlatformFeeRate:       c.feeRate,
	}, nil
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func parseRate(name, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid rate %q: %w", name, raw, err)
	}
	return rate, nil
}

func checkRate(name string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s rate %s outside [0, 1]", name, rate)
	}
	return nil
}
