package exchange

import (
	"context"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/rxtech-lab/argo-bitso/pkg/utils"
	"go.uber.org/zap"
)

const (
	// BinanceDecimalPrecision is the fallback quantity precision for base assets.
	BinanceDecimalPrecision = 8
	// binanceQuotePrecision is used for quote-currency order amounts.
	binanceQuotePrecision = 2
)

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	QuoteOrderQty(quoteOrderQty string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// ListPricesService interface for latest symbol prices.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetAccountService() GetAccountService
	NewListPricesService() ListPricesService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) QuoteOrderQty(quoteOrderQty string) CreateOrderService {
	s.service = s.service.QuoteOrderQty(quoteOrderQty)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

// BinanceGateway implements Gateway on Binance spot. It is stateless; every
// call goes to the API.
type BinanceGateway struct {
	client           BinanceClient
	decimalPrecision int
	logger           *logger.Logger
}

// NewBinanceGateway creates a Binance gateway. UseTestnet selects the Binance
// testnet; a BaseURL takes precedence over it.
func NewBinanceGateway(cfg BinanceConfig, log *logger.Logger) (*BinanceGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.UseTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return newBinanceGatewayWithClient(&realBinanceClient{client: client}, log), nil
}

// newBinanceGatewayWithClient is used by tests with mock clients.
func newBinanceGatewayWithClient(client BinanceClient, log *logger.Logger) *BinanceGateway {
	return &BinanceGateway{
		client:           client,
		decimalPrecision: BinanceDecimalPrecision,
		logger:           log,
	}
}

// BinanceSymbol converts a book such as eth_mxn to ETHMXN.
func BinanceSymbol(pair types.Pair) string {
	return pair.Asset() + pair.Quote()
}

// GetTicker returns the latest price of the pair. Binance does not report a
// timestamp for it, so CreatedAt stays zero.
func (b *BinanceGateway) GetTicker(ctx context.Context, pair types.Pair) (types.Ticker, error) {
	symbol := BinanceSymbol(pair)

	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return types.Ticker{}, errors.Wrapf(errors.ErrCodeExchangeRequestFailed, err, "failed to get price for %s from Binance", symbol)
	}

	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}

		last, err := strconv.ParseFloat(p.Price, 64)
		if err != nil || last <= 0 {
			return types.Ticker{}, errors.Newf(errors.ErrCodeExchangeResponse, "invalid price %q for %s", p.Price, symbol)
		}

		return types.Ticker{Pair: pair, Last: last}, nil
	}

	return types.Ticker{}, errors.Newf(errors.ErrCodeDataNotFound, "no price for %s", symbol)
}

// GetAccountStatus maps the account's CanTrade flag.
func (b *BinanceGateway) GetAccountStatus(ctx context.Context) (types.AccountStatus, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return types.AccountStatus{}, errors.Wrap(errors.ErrCodeExchangeRequestFailed, "failed to get account info from Binance", err)
	}

	status := "inactive"
	if account.CanTrade {
		status = "active"
	}

	return types.AccountStatus{Active: account.CanTrade, Status: status}, nil
}

// GetBalance returns the free amount of every asset.
func (b *BinanceGateway) GetBalance(ctx context.Context) (types.Balances, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExchangeRequestFailed, "failed to get account info from Binance", err)
	}

	balances := make(types.Balances, len(account.Balances))

	for _, balance := range account.Balances {
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeExchangeResponse, err, "invalid free amount for %s", balance.Asset)
		}

		balances[strings.ToUpper(balance.Asset)] = free
	}

	return balances, nil
}

// PlaceOrder submits an order. Buys sized in the quote currency use
// quoteOrderQty; sells use the base quantity.
func (b *BinanceGateway) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	if err := order.Validate(); err != nil {
		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, err
	}

	var side binance.SideType

	switch order.Side {
	case types.OrderSideBuy:
		side = binance.SideTypeBuy
	case types.OrderSideSell:
		side = binance.SideTypeSell
	default:
		err := errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", order.Side)

		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, err
	}

	var orderType binance.OrderType

	switch order.Type {
	case types.OrderTypeMarket:
		orderType = binance.OrderTypeMarket
	case types.OrderTypeLimit:
		orderType = binance.OrderTypeLimit
	default:
		err := errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order type: %s", order.Type)

		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, err
	}

	service := b.client.NewCreateOrderService().
		Symbol(BinanceSymbol(order.Pair)).
		Side(side).
		Type(orderType)

	if order.Major > 0 {
		quantity := utils.RoundToDecimalPrecision(order.Major, b.decimalPrecision)
		if quantity <= 0 {
			err := errors.Newf(errors.ErrCodeOrderBelowMinimum,
				"order quantity %.8f is too small after rounding to %d decimal places", order.Major, b.decimalPrecision)

			return types.OrderResult{Success: false, ErrorMessage: err.Error()}, err
		}

		service = service.Quantity(strconv.FormatFloat(quantity, 'f', b.decimalPrecision, 64))
	} else {
		quote := utils.RoundToDecimalPrecision(order.Minor, binanceQuotePrecision)
		service = service.QuoteOrderQty(strconv.FormatFloat(quote, 'f', binanceQuotePrecision, 64))
	}

	if order.Type == types.OrderTypeLimit {
		service = service.
			Price(strconv.FormatFloat(order.Price, 'f', -1, 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	}

	response, err := service.Do(ctx)
	if err != nil {
		code := errors.ErrCodeOrderFailed
		if errors.IsBalanceMessage(err.Error()) {
			code = errors.ErrCodeInsufficientBalance
		}

		wrapped := errors.Wrap(code, "failed to place order on Binance", err)

		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, wrapped
	}

	orderID := strconv.FormatInt(response.OrderID, 10)

	b.logger.Info("Order placed",
		zap.String("symbol", response.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("order_id", orderID),
		zap.String("status", string(response.Status)),
	)

	return types.OrderResult{Success: true, OrderID: orderID}, nil
}

var _ Gateway = (*BinanceGateway)(nil)
