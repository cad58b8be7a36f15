// Package orchestrator sequences trading cycles: prices in, risk exits,
// strategy signals, budget admission and order execution against one
// exchange gateway.
package orchestrator

import (
	"context"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-bitso/internal/admission"
	"github.com/rxtech-lab/argo-bitso/internal/config"
	"github.com/rxtech-lab/argo-bitso/internal/exchange"
	"github.com/rxtech-lab/argo-bitso/internal/ledger"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/pricebuffer"
	"github.com/rxtech-lab/argo-bitso/internal/reconciliation"
	"github.com/rxtech-lab/argo-bitso/internal/risk"
	"github.com/rxtech-lab/argo-bitso/internal/strategy"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// HistoryStore persists and restores price samples.
type HistoryStore interface {
	Save(pair types.Pair, samples []types.PriceSample) (string, error)
	LoadLatest(pair types.Pair) ([]types.PriceSample, string, error)
}

// Dependencies are the collaborators of an Orchestrator. Only Gateway is
// required.
type Dependencies struct {
	Gateway exchange.Gateway
	// Ledger defaults to an empty ledger using the resolved taker fee.
	Ledger *ledger.Ledger
	// History is optional; without it price history is not persisted.
	History HistoryStore
	// Rand drives the random admission policy.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now func() time.Time
}

// CycleSummary describes the last completed cycle.
type CycleSummary struct {
	Number     int                    `json:"number" yaml:"number"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	Duration   time.Duration          `json:"duration" yaml:"duration"`
	Aborted    string                 `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Prices     map[types.Pair]float64 `json:"prices" yaml:"prices"`
	Sells      int                    `json:"sells" yaml:"sells"`
	Buys       int                    `json:"buys" yaml:"buys"`
	Signals    []types.BuySignal      `json:"signals" yaml:"signals"`
	Rejected   []types.RejectedSignal `json:"rejected" yaml:"rejected"`
	Errors     []string               `json:"errors,omitempty" yaml:"errors,omitempty"`
	Reconciled bool                   `json:"reconciled" yaml:"reconciled"`
}

// Orchestrator runs trading cycles. Cycles never overlap.
type Orchestrator struct {
	cfg        config.Config
	pairs      []types.Pair
	gateway    exchange.Gateway
	ledger     *ledger.Ledger
	buffer     *pricebuffer.Buffer
	strategy   strategy.Strategy
	risk       *risk.Monitor
	admission  *admission.Controller
	reconciler *reconciliation.Manager
	history    HistoryStore
	fees       exchange.FeeSchedule
	now        func() time.Time

	running sync.Mutex
	// guarded by running
	cycles          int
	unsavedSamples  int
	historyRestored bool

	summaryMu sync.RWMutex
	lastCycle CycleSummary

	logger *logger.Logger
}

// New wires an orchestrator from a validated configuration.
func New(cfg config.Config, deps Dependencies, log *logger.Logger) (*Orchestrator, error) {
	if deps.Gateway == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "exchange gateway is required")
	}

	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}

	strat := strategy.Parse(cfg.Strategy, log)
	if err := strat.Validate(); err != nil {
		return nil, err
	}

	monitor, err := risk.NewMonitor(cfg.StopLossPct, cfg.TakeProfitPct, log)
	if err != nil {
		return nil, err
	}

	fees := exchange.ResolveFees(cfg.Exchange.Provider, cfg.Fees)

	l := deps.Ledger
	if l == nil {
		l = ledger.New(log, ledger.Config{TakerFee: fees.TakerRate})
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	buffer := pricebuffer.New(cfg.MaxHistoryLength)

	return &Orchestrator{
		cfg:        cfg,
		pairs:      pairs,
		gateway:    deps.Gateway,
		ledger:     l,
		buffer:     buffer,
		strategy:   strat,
		risk:       monitor,
		admission:  admission.NewController(cfg.AllocationStrategy, deps.Rand, log),
		reconciler: reconciliation.NewManager(deps.Gateway, l, buffer, pairs, log),
		history:    deps.History,
		fees:       fees,
		now:        now,
		logger:     log,
	}, nil
}

// Ledger returns the ledger the orchestrator trades into.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// Buffer returns the price buffer.
func (o *Orchestrator) Buffer() *pricebuffer.Buffer {
	return o.buffer
}

// Reconciler returns the reconciliation manager.
func (o *Orchestrator) Reconciler() *reconciliation.Manager {
	return o.reconciler
}

// Fees returns the fee schedule used for fills.
func (o *Orchestrator) Fees() exchange.FeeSchedule {
	return o.fees
}

// LastCycle returns the summary of the most recent cycle.
func (o *Orchestrator) LastCycle() CycleSummary {
	o.summaryMu.RLock()
	defer o.summaryMu.RUnlock()

	return o.lastCycle
}

// LoadHistory restores each pair's buffer from its most recent history
// file. Missing or malformed files leave that pair's history empty.
func (o *Orchestrator) LoadHistory() {
	if o.history == nil {
		return
	}

	for _, pair := range o.pairs {
		samples, path, err := o.history.LoadLatest(pair)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeDataNotFound) {
				o.logger.Info("No price history found, starting fresh", zap.String("pair", pair.String()))
			} else {
				o.logger.Warn("Discarding unreadable price history",
					zap.String("pair", pair.String()),
					zap.String("path", path),
					zap.Error(err),
				)
			}

			continue
		}

		if err := o.buffer.Load(pair, samples); err != nil {
			o.logger.Warn("Discarding invalid price history",
				zap.String("pair", pair.String()),
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	o.historyRestored = true
}

// Run loads history, runs one cycle immediately and then one per
// CheckInterval until ctx is cancelled. History is persisted on exit.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.historyRestored {
		o.LoadHistory()
	}

	o.logger.Info("Trader started",
		zap.Strings("pairs", o.cfg.TradingPairs),
		zap.String("strategy", o.strategy.Name()),
		zap.String("allocation", string(o.admission.Policy())),
		zap.Bool("dry_run", o.cfg.DryRun),
		zap.Duration("interval", o.cfg.CheckInterval),
		zap.Float64("taker_fee", o.ledger.TakerFee()),
	)

	o.RunTradingCycle(ctx)

	ticker := time.NewTicker(o.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Trader stopping")
			o.PersistHistory()
			o.ledger.LogStatus()

			return nil
		case <-ticker.C:
			o.RunTradingCycle(ctx)
		}
	}
}

// cycleState carries balances through one cycle. budget is the snapshot
// taken at the start and funds admission; balances backs sell validation
// and is refetched after it goes stale.
type cycleState struct {
	budget   types.Balances
	balances types.Balances
	stale    bool
	summary  *CycleSummary
}

// RunTradingCycle runs one cycle. A call made while another cycle is
// running returns immediately.
func (o *Orchestrator) RunTradingCycle(ctx context.Context) {
	if !o.running.TryLock() {
		o.logger.Warn("Trading cycle already running, skipping")

		return
	}
	defer o.running.Unlock()

	o.cycles++
	summary := CycleSummary{
		Number:    o.cycles,
		StartedAt: o.now(),
		Prices:    make(map[types.Pair]float64, len(o.pairs)),
	}

	defer func() {
		summary.Duration = o.now().Sub(summary.StartedAt)

		o.summaryMu.Lock()
		o.lastCycle = summary
		o.summaryMu.Unlock()
	}()

	o.logger.Info("Starting trading cycle", zap.Int("cycle", summary.Number))

	status, err := o.gateway.GetAccountStatus(ctx)
	if err != nil {
		o.logger.Error("Account status unavailable, skipping cycle", zap.Error(err))
		summary.Aborted = err.Error()

		return
	}

	if !status.Active {
		err := errors.Newf(errors.ErrCodeAccountInactive, "account status %q", status.Status)
		o.logger.Warn("Account is not active, skipping cycle", zap.Error(err))
		summary.Aborted = err.Error()

		return
	}

	cycle := &cycleState{summary: &summary}

	balances, err := o.gateway.GetBalance(ctx)
	if err != nil {
		o.logger.Error("Balance unavailable, buys disabled this cycle", zap.Error(err))

		cycle.stale = true
	} else {
		if balances == nil {
			balances = types.Balances{}
		}

		cycle.budget = balances
		cycle.balances = balances
	}

	var cycleErr error

	signals := make([]types.BuySignal, 0, len(o.pairs))

	for _, pair := range o.pairs {
		signal, err := o.safeProcessPair(ctx, cycle, pair)
		if err != nil {
			o.logger.Error("Pair skipped", zap.String("pair", pair.String()), zap.Error(err))
			cycleErr = multierr.Append(cycleErr, err)

			continue
		}

		if signal.IsSome() {
			signals = append(signals, signal.Unwrap())
		}
	}

	summary.Signals = signals

	if err := o.executeBuys(ctx, cycle, signals); err != nil {
		cycleErr = multierr.Append(cycleErr, err)
	}

	o.ledger.LogStatus()
	o.maybePersist()

	if cycleErr != nil {
		for _, e := range multierr.Errors(cycleErr) {
			summary.Errors = append(summary.Errors, e.Error())
		}

		o.logger.Warn("Trading cycle finished with errors",
			zap.Int("cycle", summary.Number),
			zap.Int("errors", len(summary.Errors)),
			zap.Error(cycleErr),
		)

		return
	}

	o.logger.Info("Trading cycle finished",
		zap.Int("cycle", summary.Number),
		zap.Int("buys", summary.Buys),
		zap.Int("sells", summary.Sells),
	)
}

// safeProcessPair keeps a panic on one pair from ending the cycle.
func (o *Orchestrator) safeProcessPair(ctx context.Context, cycle *cycleState, pair types.Pair) (signal optional.Option[types.BuySignal], err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Recovered panic while processing pair",
				zap.String("pair", pair.String()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)

			signal = optional.None[types.BuySignal]()
			err = errors.Newf(errors.ErrCodeUnknown, "panic processing %s: %v", pair, r)
		}
	}()

	return o.processPair(ctx, cycle, pair)
}

func (o *Orchestrator) processPair(ctx context.Context, cycle *cycleState, pair types.Pair) (optional.Option[types.BuySignal], error) {
	none := optional.None[types.BuySignal]()
	asset := pair.Asset()

	ticker, err := o.gateway.GetTicker(ctx, pair)
	if err != nil {
		return none, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "ticker for %s", pair)
	}

	now := o.now()

	if o.cfg.MaxTickerAge > 0 {
		if age := ticker.Age(now); age > o.cfg.MaxTickerAge {
			o.logger.Warn("Stale ticker",
				zap.String("pair", pair.String()),
				zap.Duration("age", age),
				zap.Duration("max_age", o.cfg.MaxTickerAge),
			)
		}
	}

	price := ticker.Last
	if err := o.buffer.AppendPrice(pair, price, now); err != nil {
		return none, err
	}

	o.unsavedSamples++
	cycle.summary.Prices[pair] = price

	o.logger.Info("Price update",
		zap.String("pair", pair.String()),
		zap.Float64("price", price),
		zap.Int("history", o.buffer.Len(pair)),
	)

	o.ledger.MarkToMarket(asset, price)

	var pairErr error

	for _, trigger := range o.risk.Evaluate(o.ledger.Lots(asset), price) {
		if err := o.sell(ctx, cycle, pair, trigger.Lot.Amount, price, trigger.Reason); err != nil {
			pairErr = multierr.Append(pairErr, err)
		}
	}

	holdings := o.ledger.AvailableAmount(asset)

	required := max(o.cfg.MinHistory, o.strategy.MinSamples())
	if o.buffer.Len(pair) < required {
		o.logger.Debug("Not enough history for signals",
			zap.String("pair", pair.String()),
			zap.Int("have", o.buffer.Len(pair)),
			zap.Int("need", required),
		)

		return none, pairErr
	}

	prices := o.buffer.Prices(pair)

	switch {
	case holdings == 0 && o.strategy.ShouldBuy(prices):
		o.logger.Info("Buy signal", zap.String("pair", pair.String()), zap.Float64("price", price))

		return optional.Some(types.BuySignal{Pair: pair, Asset: asset, Price: price}), pairErr
	case holdings > 0 && o.strategy.ShouldSell(prices):
		o.logger.Info("Sell signal",
			zap.String("pair", pair.String()),
			zap.Float64("price", price),
			zap.Float64("holdings", holdings),
		)

		if err := o.sell(ctx, cycle, pair, holdings, price, types.TradeReasonSignal); err != nil {
			pairErr = multierr.Append(pairErr, err)
		}
	}

	return none, pairErr
}

// executeBuys admits signals per quote currency and fills the admitted ones.
func (o *Orchestrator) executeBuys(ctx context.Context, cycle *cycleState, signals []types.BuySignal) error {
	if len(signals) == 0 {
		return nil
	}

	if cycle.budget == nil {
		o.logger.Warn("Skipping buys without a balance snapshot", zap.Int("signals", len(signals)))

		return nil
	}

	var (
		quotes []string
		groups = make(map[string][]types.BuySignal)
	)

	for _, signal := range signals {
		quote := signal.Pair.Quote()
		if _, ok := groups[quote]; !ok {
			quotes = append(quotes, quote)
		}

		groups[quote] = append(groups[quote], signal)
	}

	var buyErr error

	for _, quote := range quotes {
		budget := cycle.budget.Available(quote)
		decision := o.admission.Select(groups[quote], budget, o.cfg.TradeAmount)

		o.logger.Info("Admission",
			zap.String("currency", quote),
			zap.Float64("budget", budget),
			zap.Int("affordable", decision.Affordable),
			zap.Int("admitted", len(decision.Admitted)),
			zap.Int("rejected", len(decision.Rejected)),
		)

		cycle.summary.Rejected = append(cycle.summary.Rejected, decision.Rejected...)

		for _, signal := range decision.Admitted {
			if err := o.buy(ctx, cycle, signal); err != nil {
				o.logger.Error("Buy failed", zap.String("pair", signal.Pair.String()), zap.Error(err))
				buyErr = multierr.Append(buyErr, err)
			}
		}
	}

	return buyErr
}

// PersistHistory writes every pair's buffered samples.
func (o *Orchestrator) PersistHistory() {
	if o.history == nil {
		return
	}

	for _, pair := range o.buffer.Pairs() {
		if _, err := o.history.Save(pair, o.buffer.Samples(pair)); err != nil {
			o.logger.Error("Failed to persist price history", zap.String("pair", pair.String()), zap.Error(err))
		}
	}

	o.unsavedSamples = 0
}

func (o *Orchestrator) maybePersist() {
	if o.unsavedSamples >= o.cfg.PersistEvery {
		o.PersistHistory()
	}
}
