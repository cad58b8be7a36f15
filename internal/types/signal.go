package types

// BuySignal is a cycle-scoped request to open a position on a pair.
type BuySignal struct {
	Pair  Pair    `json:"pair" yaml:"pair"`
	Asset string  `json:"asset" yaml:"asset"`
	Price float64 `json:"price" yaml:"price"`
	// Amount is the currency to spend; admission fills it in.
	Amount float64 `json:"amount" yaml:"amount"`
}

// RejectReason explains why admission dropped a buy signal.
type RejectReason string

const (
	RejectReasonInsufficientFunds RejectReason = "insufficient_funds"
	RejectReasonAllocationLimit   RejectReason = "allocation_limit"
)

// RejectedSignal is a dropped buy signal with its reason.
type RejectedSignal struct {
	Signal BuySignal    `json:"signal" yaml:"signal"`
	Reason RejectReason `json:"reason" yaml:"reason"`
}
