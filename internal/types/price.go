package types

import "time"

// PriceSample is one observed price for a pair.
type PriceSample struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" csv:"timestamp"`
	Price     float64   `json:"price" yaml:"price" csv:"price"`
}

// Prices extracts the price column from a sample slice, oldest first.
func Prices(samples []PriceSample) []float64 {
	prices := make([]float64, len(samples))
	for i, sample := range samples {
		prices[i] = sample.Price
	}

	return prices
}
