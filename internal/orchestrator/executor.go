package orchestrator

import (
	"context"
	"math"

	"github.com/rxtech-lab/argo-bitso/internal/reconciliation"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMinimumTradeAmount applies to pairs without a listed minimum.
const DefaultMinimumTradeAmount = 0.001

// minimumTradeAmounts are the smallest sell sizes in the base asset.
var minimumTradeAmounts = map[types.Pair]float64{
	"eth_mxn":  0.001,
	"ltc_mxn":  0.01,
	"avax_mxn": 0.1,
	"sol_mxn":  0.01,
}

// MinimumTradeAmount returns the smallest sell size of a pair.
func MinimumTradeAmount(pair types.Pair) float64 {
	if minimum, ok := minimumTradeAmounts[pair]; ok {
		return minimum
	}

	return DefaultMinimumTradeAmount
}

// buy fills an admitted signal. The filled amount is the currency spent at
// the signal price; the lot's entry price carries the taker fee.
func (o *Orchestrator) buy(ctx context.Context, cycle *cycleState, signal types.BuySignal) error {
	if signal.Amount <= 0 || signal.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid buy for %s: amount %f at price %f", signal.Pair, signal.Amount, signal.Price)
	}

	if o.cfg.DryRun {
		o.logger.Info("DRY RUN: would buy",
			zap.String("pair", signal.Pair.String()),
			zap.Float64("spend", signal.Amount),
			zap.Float64("price", signal.Price),
		)
	} else {
		result, err := o.gateway.PlaceOrder(ctx, types.OrderRequest{
			Pair:  signal.Pair,
			Side:  types.OrderSideBuy,
			Type:  types.OrderTypeMarket,
			Minor: signal.Amount,
		})
		if err := orderError(result, err); err != nil {
			return errors.Wrapf(errors.ErrCodeOrderFailed, err, "buy %s", signal.Pair)
		}

		cycle.stale = true

		o.logger.Info("Buy order placed",
			zap.String("pair", signal.Pair.String()),
			zap.String("order_id", result.OrderID),
			zap.Float64("spend", signal.Amount),
		)
	}

	takerFee := o.ledger.TakerFee()
	amount := signal.Amount / signal.Price

	if _, err := o.ledger.Open(signal.Asset, amount, o.fees.FeeInclusivePrice(signal.Price), takerFee); err != nil {
		return err
	}

	cycle.summary.Buys++

	return nil
}

// sell closes up to requested units of the pair's asset at price. The
// amount is capped by what can actually be sold and rejected below the
// pair minimum. A placement failure that mentions the balance triggers
// reconciliation.
func (o *Orchestrator) sell(ctx context.Context, cycle *cycleState, pair types.Pair, requested, price float64, reason types.TradeReason) error {
	asset := pair.Asset()

	amount, err := o.validateSellAmount(ctx, cycle, pair, requested)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeOrderBelowMinimum) {
			o.logger.Warn("Sell skipped", zap.String("pair", pair.String()), zap.Error(err))

			return nil
		}

		return err
	}

	if o.cfg.DryRun {
		o.logger.Info("DRY RUN: would sell",
			zap.String("pair", pair.String()),
			zap.Float64("amount", amount),
			zap.Float64("price", price),
			zap.String("reason", string(reason)),
		)
	} else {
		result, err := o.gateway.PlaceOrder(ctx, types.OrderRequest{
			Pair:  pair,
			Side:  types.OrderSideSell,
			Type:  types.OrderTypeMarket,
			Major: amount,
		})
		if err := orderError(result, err); err != nil {
			o.logger.Error("Sell order failed",
				zap.String("pair", pair.String()),
				zap.Float64("amount", amount),
				zap.Error(err),
			)

			if errors.IsBalanceError(err) {
				o.reconcile(ctx, cycle)
			}

			return errors.Wrapf(errors.ErrCodeOrderFailed, err, "sell %s", pair)
		}

		cycle.stale = true

		o.logger.Info("Sell order placed",
			zap.String("pair", pair.String()),
			zap.String("order_id", result.OrderID),
			zap.Float64("amount", amount),
		)
	}

	result, err := o.ledger.CloseWithReason(asset, amount, price, o.ledger.TakerFee(), reason)
	if err != nil {
		return err
	}

	if result.Closed > 0 {
		cycle.summary.Sells++
	}

	return nil
}

// validateSellAmount returns min(requested, sellable). In dry-run the ledger
// holdings are what can be sold; live, the exchange balance is, and a ledger
// holding more than the exchange beyond the reconciliation tolerance is
// reconciled before the amount is capped.
func (o *Orchestrator) validateSellAmount(ctx context.Context, cycle *cycleState, pair types.Pair, requested float64) (float64, error) {
	asset := pair.Asset()
	ledgerAmount := o.ledger.AvailableAmount(asset)

	sellable := ledgerAmount

	if !o.cfg.DryRun {
		balances, err := o.currentBalances(ctx, cycle)
		if err != nil {
			return 0, err
		}

		sellable = balances.Available(asset)

		if ledgerAmount-sellable > reconciliation.DefaultTolerance {
			o.logger.Warn("Ledger holds more than the exchange",
				zap.String("asset", asset),
				zap.Float64("ledger", ledgerAmount),
				zap.Float64("exchange", sellable),
			)
			o.reconcile(ctx, cycle)
		}
	}

	amount := math.Min(requested, sellable)

	o.logger.Info("Sell validation",
		zap.String("asset", asset),
		zap.Float64("requested", requested),
		zap.Float64("ledger", ledgerAmount),
		zap.Float64("sellable", sellable),
	)

	if minimum := MinimumTradeAmount(pair); amount < minimum {
		return 0, errors.Newf(errors.ErrCodeOrderBelowMinimum,
			"%s sell of %f is below the minimum %f", pair, amount, minimum)
	}

	if amount != requested {
		o.logger.Warn("Adjusted sell amount",
			zap.String("asset", asset),
			zap.Float64("requested", requested),
			zap.Float64("amount", amount),
		)
	}

	return amount, nil
}

// currentBalances returns the cycle snapshot, refetching it once stale.
func (o *Orchestrator) currentBalances(ctx context.Context, cycle *cycleState) (types.Balances, error) {
	if !cycle.stale && cycle.balances != nil {
		return cycle.balances, nil
	}

	balances, err := o.gateway.GetBalance(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExchangeRequestFailed, "failed to refresh balances", err)
	}

	cycle.balances = balances
	cycle.stale = false

	return balances, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, cycle *cycleState) {
	o.logger.Warn("Balance-related order failure, reconciling ledger")

	report, err := o.reconciler.Reconcile(ctx)
	if err != nil {
		o.logger.Error("Reconciliation failed", zap.Error(err))

		return
	}

	cycle.stale = true
	cycle.summary.Reconciled = report.Changed() || cycle.summary.Reconciled
}

// orderError folds a rejected result into an error.
func orderError(result types.OrderResult, err error) error {
	if err != nil {
		return err
	}

	if !result.Success {
		message := result.ErrorMessage
		if message == "" {
			message = "order rejected"
		}

		code := errors.ErrCodeOrderFailed
		if errors.IsBalanceMessage(message) {
			code = errors.ErrCodeInsufficientBalance
		}

		return errors.New(code, message)
	}

	return nil
}
