package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
)

type OrderSide string

type OrderType string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is a market order. Buys are sized in the quote currency
// (Minor), sells in the base asset (Major); exactly one must be set.
type OrderRequest struct {
	Pair  Pair      `json:"book" validate:"required"`
	Side  OrderSide `json:"side" validate:"required,oneof=buy sell"`
	Type  OrderType `json:"type" validate:"required,oneof=market limit"`
	Major float64   `json:"major,omitempty" validate:"gte=0"`
	Minor float64   `json:"minor,omitempty" validate:"gte=0"`
	Price float64   `json:"price,omitempty" validate:"gte=0"`
}

// Validate checks field constraints and the major/minor exclusivity.
func (o OrderRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid order request", err)
	}

	if (o.Major > 0) == (o.Minor > 0) {
		return errors.New(errors.ErrCodeInvalidParameter, "exactly one of major or minor must be set")
	}

	if o.Type == OrderTypeLimit && o.Price <= 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "limit orders need a price")
	}

	return nil
}

// OrderResult is the outcome of a placement attempt.
type OrderResult struct {
	Success      bool   `json:"success"`
	OrderID      string `json:"order_id"`
	ErrorMessage string `json:"error_message"`
}
