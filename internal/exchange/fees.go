package exchange

import (
	"github.com/rxtech-lab/argo-bitso/internal/config"
)

// FeeSchedule holds a venue's maker and taker rates as fractions.
type FeeSchedule struct {
	MakerRate float64 `json:"makerRate" yaml:"maker_rate"`
	TakerRate float64 `json:"takerRate" yaml:"taker_rate"`
}

// ResolveFees returns the provider's default schedule with any non-zero
// configured rate taking precedence. Unknown providers get zero fees.
func ResolveFees(provider string, override config.FeeConfig) FeeSchedule {
	fees := FeeSchedule{}

	if info, err := GetProviderInfo(provider); err == nil {
		fees = info.Fees
	}

	if override.MakerRate > 0 {
		fees.MakerRate = override.MakerRate
	}

	if override.TakerRate > 0 {
		fees.TakerRate = override.TakerRate
	}

	return fees
}

// FeeInclusivePrice is the per-unit cost of a buy at price after the fee.
func (f FeeSchedule) FeeInclusivePrice(price float64) float64 {
	return price * (1 + f.TakerRate)
}
