package types

import "time"

// Lot is a quantity of an asset acquired at a single fee-inclusive entry price.
type Lot struct {
	ID     string  `json:"id" yaml:"id"`
	Asset  string  `json:"asset" yaml:"asset"`
	Amount float64 `json:"amount" yaml:"amount"`
	// EntryPrice already includes the buy fee, so closing at EntryPrice
	// after exit fees is a loss of exactly the exit fee.
	EntryPrice float64   `json:"entry_price" yaml:"entry_price"`
	EntryTime  time.Time `json:"entry_time" yaml:"entry_time"`
	FeeRate    float64   `json:"fee_rate" yaml:"fee_rate"`
	// UnrealizedPnL is refreshed by mark-to-market and is never part of realized totals.
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
}

// PctChange returns the percentage move from the entry price to price.
func (l Lot) PctChange(price float64) float64 {
	if l.EntryPrice == 0 {
		return 0
	}

	return (price - l.EntryPrice) / l.EntryPrice * 100
}
