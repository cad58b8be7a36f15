package types

import "time"

// TradeAction is the side of a ledger trade record.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "BUY"
	TradeActionSell TradeAction = "SELL"
)

// TradeReason tells why the ledger was mutated.
type TradeReason string

const (
	TradeReasonSignal         TradeReason = "signal"
	TradeReasonStopLoss       TradeReason = "stop_loss"
	TradeReasonTakeProfit     TradeReason = "take_profit"
	TradeReasonReconciliation TradeReason = "reconciliation"
)

// TradeRecord is an immutable entry of the ledger's audit trail.
type TradeRecord struct {
	ID     string      `json:"id" yaml:"id"`
	Action TradeAction `json:"action" yaml:"action"`
	Asset  string      `json:"asset" yaml:"asset"`
	Amount float64     `json:"amount" yaml:"amount"`
	Price  float64     `json:"price" yaml:"price"`
	// FeeRate is the rate applied on this trade.
	FeeRate float64 `json:"fee_rate" yaml:"fee_rate"`
	// FeeValue is only set on SELL records: amount * exit price * fee rate.
	FeeValue float64 `json:"fee_value" yaml:"fee_value"`
	// PnL is only set on SELL records. For example, a lot of 0.02 ETH entered at
	// 50000 and sold at 51000 with a 0.0065 fee realizes (51000*0.9935-50000)*0.02 = 13.37.
	PnL       float64     `json:"pnl" yaml:"pnl"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Reason    TradeReason `json:"reason" yaml:"reason"`
}

// CloseResult summarizes one ledger close call.
type CloseResult struct {
	Requested float64 `json:"requested" yaml:"requested"`
	Closed    float64 `json:"closed" yaml:"closed"`
	PnL       float64 `json:"pnl" yaml:"pnl"`
	FeeValue  float64 `json:"fee_value" yaml:"fee_value"`
	// LotsConsumed counts lots touched, fully or partially.
	LotsConsumed int `json:"lots_consumed" yaml:"lots_consumed"`
}
