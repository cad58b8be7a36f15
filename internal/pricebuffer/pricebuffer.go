// Package pricebuffer keeps a bounded, time-ordered window of price samples per pair.
package pricebuffer

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
)

// DefaultMaxLength is the per-pair capacity used when none is configured.
const DefaultMaxLength = 1000

// Buffer stores price samples per pair, oldest first. A sample at an existing
// timestamp replaces the stored price; the oldest samples are evicted once a
// pair exceeds maxLength.
type Buffer struct {
	maxLength int
	data      map[types.Pair][]types.PriceSample
	mu        sync.RWMutex
}

// New creates a buffer holding at most maxLength samples per pair.
func New(maxLength int) *Buffer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	return &Buffer{
		maxLength: maxLength,
		data:      make(map[types.Pair][]types.PriceSample),
		mu:        sync.RWMutex{},
	}
}

// Append adds a sample for the pair.
func (b *Buffer) Append(pair types.Pair, sample types.PriceSample) error {
	if sample.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "price must be positive, got %f", sample.Price)
	}

	if sample.Timestamp.IsZero() {
		return errors.New(errors.ErrCodeInvalidParameter, "sample timestamp is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	samples := b.data[pair]

	// chronological append is the normal path
	if n := len(samples); n == 0 || sample.Timestamp.After(samples[n-1].Timestamp) {
		samples = append(samples, sample)
		b.data[pair] = b.evict(samples)

		return nil
	}

	idx := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Timestamp.Before(sample.Timestamp)
	})

	if idx < len(samples) && samples[idx].Timestamp.Equal(sample.Timestamp) {
		samples[idx] = sample

		return nil
	}

	samples = append(samples, types.PriceSample{}) //nolint:exhaustruct // placeholder for slice expansion
	copy(samples[idx+1:], samples[idx:])
	samples[idx] = sample

	b.data[pair] = b.evict(samples)

	return nil
}

// AppendPrice appends a sample stamped with the given time.
func (b *Buffer) AppendPrice(pair types.Pair, price float64, at time.Time) error {
	return b.Append(pair, types.PriceSample{Timestamp: at, Price: price})
}

func (b *Buffer) evict(samples []types.PriceSample) []types.PriceSample {
	if len(samples) <= b.maxLength {
		return samples
	}

	return samples[len(samples)-b.maxLength:]
}

// Load replaces the pair's history. Samples are sorted, deduplicated by
// timestamp (later entries win) and trimmed to the newest maxLength.
// Non-positive prices are rejected and leave the buffer untouched.
func (b *Buffer) Load(pair types.Pair, samples []types.PriceSample) error {
	for _, s := range samples {
		if s.Price <= 0 {
			return errors.Newf(errors.ErrCodeMarketDataParseFailed, "non-positive price %f at %s", s.Price, s.Timestamp.Format(time.RFC3339))
		}
	}

	sorted := make([]types.PriceSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	deduped := make([]types.PriceSample, 0, len(sorted))
	for _, s := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(s.Timestamp) {
			deduped[n-1] = s

			continue
		}

		deduped = append(deduped, s)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[pair] = b.evict(deduped)

	return nil
}

// Samples returns a copy of the pair's samples, oldest first.
func (b *Buffer) Samples(pair types.Pair) []types.PriceSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	samples := b.data[pair]
	result := make([]types.PriceSample, len(samples))
	copy(result, samples)

	return result
}

// Prices returns the pair's prices, oldest first.
func (b *Buffer) Prices(pair types.Pair) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return types.Prices(b.data[pair])
}

// Tail returns up to the last n prices of the pair.
func (b *Buffer) Tail(pair types.Pair, n int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	samples := b.data[pair]
	if n <= 0 {
		return []float64{}
	}

	if n < len(samples) {
		samples = samples[len(samples)-n:]
	}

	return types.Prices(samples)
}

// Last returns the newest sample of the pair.
func (b *Buffer) Last(pair types.Pair) optional.Option[types.PriceSample] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	samples := b.data[pair]
	if len(samples) == 0 {
		return optional.None[types.PriceSample]()
	}

	return optional.Some(samples[len(samples)-1])
}

// Len returns the number of samples held for the pair.
func (b *Buffer) Len(pair types.Pair) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data[pair])
}

// TotalLen returns the number of samples across all pairs.
func (b *Buffer) TotalLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, samples := range b.data {
		total += len(samples)
	}

	return total
}

// Pairs returns the pairs with at least one sample, sorted.
func (b *Buffer) Pairs() []types.Pair {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pairs := make([]types.Pair, 0, len(b.data))
	for pair, samples := range b.data {
		if len(samples) > 0 {
			pairs = append(pairs, pair)
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })

	return pairs
}

// MaxLength returns the per-pair capacity.
func (b *Buffer) MaxLength() int {
	return b.maxLength
}
