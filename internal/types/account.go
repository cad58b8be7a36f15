package types

import (
	"strings"
	"time"
)

// AccountStatus is the exchange's view of whether the account may trade.
type AccountStatus struct {
	Active bool   `json:"active" yaml:"active"`
	Status string `json:"status" yaml:"status"`
}

// Balances maps an upper-cased currency code to its available amount.
type Balances map[string]float64

// Available returns the available amount for a currency, 0 when absent.
func (b Balances) Available(currency string) float64 {
	return b[strings.ToUpper(currency)]
}

// Ticker is the latest traded price of a pair.
type Ticker struct {
	Pair   Pair    `json:"pair" yaml:"pair"`
	Last   float64 `json:"last" yaml:"last"`
	High   float64 `json:"high" yaml:"high"`
	Low    float64 `json:"low" yaml:"low"`
	Volume float64 `json:"volume" yaml:"volume"`
	// CreatedAt is the exchange timestamp of the ticker; zero when the venue does not report one.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Age returns how old the ticker is relative to now, 0 when unknown.
func (t Ticker) Age(now time.Time) time.Duration {
	if t.CreatedAt.IsZero() {
		return 0
	}

	return now.Sub(t.CreatedAt)
}
