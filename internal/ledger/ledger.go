// Package ledger implements FIFO lot accounting with fee-aware realized and
// unrealized P&L. The ledger is in-memory; it is rebuilt empty on restart and
// corrected against exchange balances by reconciliation.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// dust is the amount below which a lot or a remaining close amount counts as zero.
const dust = 1e-12

// TradeSink receives every trade record the ledger appends.
type TradeSink interface {
	RecordTrade(record types.TradeRecord) error
}

// Config configures a Ledger.
type Config struct {
	// TakerFee is the exit fee assumed by mark-to-market.
	TakerFee float64
	// Sink is optional.
	Sink TradeSink
	// Now defaults to time.Now.
	Now func() time.Time
}

// Ledger owns the open lots and the trade history. Lots of an asset are kept
// in acquisition order; closes consume from the front.
type Ledger struct {
	takerFee float64
	sink     TradeSink
	now      func() time.Time

	lots   map[string][]*types.Lot
	trades []types.TradeRecord

	realized decimal.Decimal
	fees     decimal.Decimal

	mu     sync.RWMutex
	logger *logger.Logger
}

// New creates an empty ledger.
func New(log *logger.Logger, cfg Config) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		takerFee: cfg.TakerFee,
		sink:     cfg.Sink,
		now:      now,
		lots:     make(map[string][]*types.Lot),
		trades:   make([]types.TradeRecord, 0),
		realized: decimal.Zero,
		fees:     decimal.Zero,
		mu:       sync.RWMutex{},
		logger:   log,
	}
}

// TakerFee returns the exit fee used for mark-to-market.
func (l *Ledger) TakerFee() float64 {
	return l.takerFee
}

func validateFeeRate(feeRate float64) error {
	if feeRate < 0 || feeRate >= 1 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "fee rate must be in [0, 1), got %f", feeRate)
	}

	return nil
}

// Open appends a new lot and records a BUY. entryPrice must already include
// the buy fee. Lots are never merged.
func (l *Ledger) Open(asset string, amount, entryPrice, feeRate float64) (types.Lot, error) {
	return l.OpenWithReason(asset, amount, entryPrice, feeRate, types.TradeReasonSignal)
}

// OpenWithReason is Open with an explicit reason on the BUY record.
func (l *Ledger) OpenWithReason(asset string, amount, entryPrice, feeRate float64, reason types.TradeReason) (types.Lot, error) {
	if amount <= 0 {
		return types.Lot{}, errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %f", amount)
	}

	if entryPrice <= 0 {
		return types.Lot{}, errors.Newf(errors.ErrCodeInvalidParameter, "entry price must be positive, got %f", entryPrice)
	}

	if err := validateFeeRate(feeRate); err != nil {
		return types.Lot{}, err
	}

	l.mu.Lock()

	now := l.now()
	lot := &types.Lot{
		ID:            uuid.New().String(),
		Asset:         asset,
		Amount:        amount,
		EntryPrice:    entryPrice,
		EntryTime:     now,
		FeeRate:       feeRate,
		UnrealizedPnL: 0,
	}
	l.lots[asset] = append(l.lots[asset], lot)

	record := types.TradeRecord{
		ID:        uuid.New().String(),
		Action:    types.TradeActionBuy,
		Asset:     asset,
		Amount:    amount,
		Price:     entryPrice,
		FeeRate:   feeRate,
		FeeValue:  0,
		PnL:       0,
		Timestamp: now,
		Reason:    reason,
	}
	l.trades = append(l.trades, record)

	l.mu.Unlock()

	l.logger.Info("Opened lot",
		zap.String("asset", asset),
		zap.Float64("amount", amount),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("fee_rate", feeRate),
		zap.String("reason", string(reason)),
	)

	l.emit(record)

	return *lot, nil
}

// Close consumes lots of the asset oldest-first until amount is satisfied or
// the lots run out. Each consumed unit realizes exit*(1-feeRate) - entry.
// A single SELL record with the amount actually closed is appended; nothing
// is recorded when no lot was consumed.
func (l *Ledger) Close(asset string, amount, exitPrice, feeRate float64) (types.CloseResult, error) {
	return l.CloseWithReason(asset, amount, exitPrice, feeRate, types.TradeReasonSignal)
}

// CloseWithReason is Close with an explicit reason on the SELL record.
func (l *Ledger) CloseWithReason(asset string, amount, exitPrice, feeRate float64, reason types.TradeReason) (types.CloseResult, error) {
	result := types.CloseResult{Requested: amount}

	if amount <= 0 {
		return result, errors.Newf(errors.ErrCodeInvalidParameter, "amount must be positive, got %f", amount)
	}

	if exitPrice <= 0 {
		return result, errors.Newf(errors.ErrCodeInvalidParameter, "exit price must be positive, got %f", exitPrice)
	}

	if err := validateFeeRate(feeRate); err != nil {
		return result, err
	}

	l.mu.Lock()

	netExit := exitPrice * (1 - feeRate)
	remaining := amount
	queue := l.lots[asset]

	for len(queue) > 0 && remaining > dust {
		lot := queue[0]
		consumed := min(remaining, lot.Amount)

		result.PnL += (netExit - lot.EntryPrice) * consumed
		result.FeeValue += consumed * exitPrice * feeRate
		result.Closed += consumed
		result.LotsConsumed++
		remaining -= consumed

		lot.Amount -= consumed
		if lot.Amount <= dust {
			queue = queue[1:]
		}
	}

	if len(queue) == 0 {
		delete(l.lots, asset)
	} else {
		l.lots[asset] = queue
	}

	if result.LotsConsumed == 0 {
		l.mu.Unlock()

		l.logger.Warn("No lots to close", zap.String("asset", asset), zap.Float64("requested", amount))

		return result, nil
	}

	l.realized = l.realized.Add(decimal.NewFromFloat(result.PnL))
	l.fees = l.fees.Add(decimal.NewFromFloat(result.FeeValue))

	record := types.TradeRecord{
		ID:        uuid.New().String(),
		Action:    types.TradeActionSell,
		Asset:     asset,
		Amount:    result.Closed,
		Price:     exitPrice,
		FeeRate:   feeRate,
		FeeValue:  result.FeeValue,
		PnL:       result.PnL,
		Timestamp: l.now(),
		Reason:    reason,
	}
	l.trades = append(l.trades, record)

	l.mu.Unlock()

	if remaining > dust {
		l.logger.Warn("Closed less than requested",
			zap.String("asset", asset),
			zap.Float64("requested", amount),
			zap.Float64("closed", result.Closed),
		)
	}

	l.logger.Info("Closed lots",
		zap.String("asset", asset),
		zap.Float64("amount", result.Closed),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", result.PnL),
		zap.Float64("fee_value", result.FeeValue),
		zap.Int("lots", result.LotsConsumed),
		zap.String("reason", string(reason)),
	)

	l.emit(record)

	return result, nil
}

func (l *Ledger) emit(record types.TradeRecord) {
	if l.sink == nil {
		return
	}

	if err := l.sink.RecordTrade(record); err != nil {
		l.logger.Error("Failed to forward trade record", zap.String("trade_id", record.ID), zap.Error(err))
	}
}

// AvailableAmount returns the summed lot amount of the asset.
func (l *Ledger) AvailableAmount(asset string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for _, lot := range l.lots[asset] {
		total += lot.Amount
	}

	return total
}

// ClearPositions drops every lot of the asset without a trade record and
// returns how many lots were removed.
func (l *Ledger) ClearPositions(asset string) int {
	l.mu.Lock()
	removed := len(l.lots[asset])
	delete(l.lots, asset)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Warn("Cleared positions", zap.String("asset", asset), zap.Int("removed", removed))
	}

	return removed
}

// MarkToMarket refreshes the unrealized P&L of every lot of the asset
// assuming an exit at currentPrice less the taker fee, and returns the sum.
func (l *Ledger) MarkToMarket(asset string, currentPrice float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	netExit := currentPrice * (1 - l.takerFee)
	total := 0.0

	for _, lot := range l.lots[asset] {
		lot.UnrealizedPnL = (netExit - lot.EntryPrice) * lot.Amount
		total += lot.UnrealizedPnL
	}

	return total
}

// TotalUnrealizedPnL sums the stored unrealized P&L of all lots.
func (l *Ledger) TotalUnrealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0
	for _, queue := range l.lots {
		for _, lot := range queue {
			total += lot.UnrealizedPnL
		}
	}

	return total
}

// TotalRealizedPnL is the sum of P&L over SELL records.
func (l *Ledger) TotalRealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.realized.InexactFloat64()
}

// TotalFeesPaid is the sum of fee value over SELL records.
func (l *Ledger) TotalFeesPaid() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.fees.InexactFloat64()
}

// Lots returns copies of the asset's lots, oldest first.
func (l *Ledger) Lots(asset string) []types.Lot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	queue := l.lots[asset]
	lots := make([]types.Lot, len(queue))

	for i, lot := range queue {
		lots[i] = *lot
	}

	return lots
}

// AllLots returns copies of every open lot grouped by asset in sorted order.
func (l *Ledger) AllLots() []types.Lot {
	assets := l.Assets()
	lots := make([]types.Lot, 0)

	for _, asset := range assets {
		lots = append(lots, l.Lots(asset)...)
	}

	return lots
}

// Assets returns the assets with open lots, sorted.
func (l *Ledger) Assets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	assets := make([]string, 0, len(l.lots))
	for asset, queue := range l.lots {
		if len(queue) > 0 {
			assets = append(assets, asset)
		}
	}

	sort.Strings(assets)

	return assets
}

// Trades returns a copy of the trade history.
func (l *Ledger) Trades() []types.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trades := make([]types.TradeRecord, len(l.trades))
	copy(trades, l.trades)

	return trades
}

// PortfolioValue values the open lots at the given per-asset prices. Assets
// without a price are skipped.
func (l *Ledger) PortfolioValue(prices map[string]float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0.0

	for asset, queue := range l.lots {
		price, ok := prices[asset]
		if !ok {
			continue
		}

		for _, lot := range queue {
			total += lot.Amount * price
		}
	}

	return total
}

// LogStatus logs the aggregate ledger state and every open lot.
func (l *Ledger) LogStatus() {
	lots := l.AllLots()

	l.logger.Info("Ledger status",
		zap.Float64("realized_pnl", l.TotalRealizedPnL()),
		zap.Float64("unrealized_pnl", l.TotalUnrealizedPnL()),
		zap.Float64("fees_paid", l.TotalFeesPaid()),
		zap.Int("open_lots", len(lots)),
		zap.Int("trades", len(l.Trades())),
	)

	for _, lot := range lots {
		l.logger.Info("Open lot",
			zap.String("asset", lot.Asset),
			zap.Float64("amount", lot.Amount),
			zap.Float64("entry_price", lot.EntryPrice),
			zap.Float64("unrealized_pnl", lot.UnrealizedPnL),
		)
	}
}
