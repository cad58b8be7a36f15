// Package reconciliation realigns the ledger with the balances the exchange
// reports. The correction is lossy: original lots and their fees are
// discarded and replaced by one synthetic lot.
package reconciliation

import (
	"context"
	"math"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bitso/internal/ledger"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/rxtech-lab/argo-bitso/pkg/utils"
	"go.uber.org/zap"
)

const (
	// DefaultTolerance is the largest ledger/exchange difference left alone.
	DefaultTolerance = 0.001
	// DefaultPriceWindow is how many recent samples price a synthetic lot.
	DefaultPriceWindow = 10
)

// BalanceFetcher is the part of the exchange gateway reconciliation needs.
type BalanceFetcher interface {
	GetBalance(ctx context.Context) (types.Balances, error)
}

// PriceHistory supplies recent prices of a pair, oldest first.
type PriceHistory interface {
	Tail(pair types.Pair, n int) []float64
}

// PositionDiff describes one corrected asset.
type PositionDiff struct {
	Pair           types.Pair `json:"pair" yaml:"pair"`
	Asset          string     `json:"asset" yaml:"asset"`
	LedgerAmount   float64    `json:"ledger_amount" yaml:"ledger_amount"`
	ExchangeAmount float64    `json:"exchange_amount" yaml:"exchange_amount"`
	Difference     float64    `json:"difference" yaml:"difference"`
	LotsCleared    int        `json:"lots_cleared" yaml:"lots_cleared"`
	// Reopened is set when a synthetic lot replaced the cleared ones.
	Reopened   bool    `json:"reopened" yaml:"reopened"`
	EntryPrice float64 `json:"entry_price,omitempty" yaml:"entry_price,omitempty"`
}

// Report lists the assets a reconciliation pass corrected.
type Report struct {
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Diffs     []PositionDiff `json:"diffs" yaml:"diffs"`
}

// Changed reports whether any asset was corrected.
func (r Report) Changed() bool {
	return len(r.Diffs) > 0
}

// Manager reconciles the ledger for a fixed set of pairs.
type Manager struct {
	balances  BalanceFetcher
	ledger    *ledger.Ledger
	prices    PriceHistory
	pairs     []types.Pair
	tolerance float64
	window    int
	now       func() time.Time
	logger    *logger.Logger
}

// NewManager creates a manager with the default tolerance and price window.
func NewManager(balances BalanceFetcher, l *ledger.Ledger, prices PriceHistory, pairs []types.Pair, log *logger.Logger) *Manager {
	return &Manager{
		balances:  balances,
		ledger:    l,
		prices:    prices,
		pairs:     pairs,
		tolerance: DefaultTolerance,
		window:    DefaultPriceWindow,
		now:       time.Now,
		logger:    log,
	}
}

// Reconcile fetches balances from the exchange and applies them.
func (m *Manager) Reconcile(ctx context.Context) (Report, error) {
	balances, err := m.balances.GetBalance(ctx)
	if err != nil {
		m.logger.Error("Reconciliation aborted, balance unavailable", zap.Error(err))

		return Report{Timestamp: m.now()}, errors.Wrap(errors.ErrCodeReconciliationError, "failed to fetch balances", err)
	}

	return m.Apply(balances), nil
}

// Apply compares each pair's asset against balances. An asset whose ledger
// amount differs by more than the tolerance has its lots cleared and, when
// the exchange holds a positive amount and the pair has price history, one
// lot reopened at the recent mean price with a zero fee rate.
func (m *Manager) Apply(balances types.Balances) Report {
	report := Report{Timestamp: m.now(), Diffs: []PositionDiff{}}
	seen := make(map[string]bool, len(m.pairs))

	for _, pair := range m.pairs {
		asset := pair.Asset()
		if seen[asset] {
			continue
		}

		seen[asset] = true

		ledgerAmount := m.ledger.AvailableAmount(asset)
		exchangeAmount := balances.Available(asset)
		difference := exchangeAmount - ledgerAmount

		if math.Abs(difference) <= m.tolerance {
			continue
		}

		m.logger.Warn("Ledger out of sync with exchange",
			zap.String("asset", asset),
			zap.Float64("ledger_amount", ledgerAmount),
			zap.Float64("exchange_amount", exchangeAmount),
			zap.Float64("difference", difference),
		)

		diff := PositionDiff{
			Pair:           pair,
			Asset:          asset,
			LedgerAmount:   ledgerAmount,
			ExchangeAmount: exchangeAmount,
			Difference:     difference,
			LotsCleared:    m.ledger.ClearPositions(asset),
		}

		if exchangeAmount > 0 {
			m.reopen(pair, &diff)
		}

		report.Diffs = append(report.Diffs, diff)
	}

	m.logger.Info("Reconciliation finished", zap.Int("corrected_assets", len(report.Diffs)))

	return report
}

func (m *Manager) reopen(pair types.Pair, diff *PositionDiff) {
	price := m.entryPrice(pair)
	if price.IsNone() {
		m.logger.Warn("No price history, position left flat",
			zap.String("pair", pair.String()),
			zap.Float64("exchange_amount", diff.ExchangeAmount),
		)

		return
	}

	lot, err := m.ledger.OpenWithReason(diff.Asset, diff.ExchangeAmount, price.Unwrap(), 0, types.TradeReasonReconciliation)
	if err != nil {
		m.logger.Error("Failed to open synthetic lot", zap.String("asset", diff.Asset), zap.Error(err))

		return
	}

	diff.Reopened = true
	diff.EntryPrice = lot.EntryPrice
}

func (m *Manager) entryPrice(pair types.Pair) optional.Option[float64] {
	recent := m.prices.Tail(pair, m.window)
	if len(recent) == 0 {
		return optional.None[float64]()
	}

	return optional.Some(utils.Mean(recent))
}
