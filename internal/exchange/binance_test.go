package exchange

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// mockBinanceClient implements BinanceClient for testing
type mockBinanceClient struct {
	createOrderService *mockCreateOrderService
	getAccountService  *mockGetAccountService
	listPricesService  *mockListPricesService
}

func newMockBinanceClient() *mockBinanceClient {
	return &mockBinanceClient{
		createOrderService: &mockCreateOrderService{},
		getAccountService:  &mockGetAccountService{},
		listPricesService:  &mockListPricesService{},
	}
}

func (m *mockBinanceClient) NewCreateOrderService() CreateOrderService {
	return m.createOrderService
}

func (m *mockBinanceClient) NewGetAccountService() GetAccountService {
	return m.getAccountService
}

func (m *mockBinanceClient) NewListPricesService() ListPricesService {
	return m.listPricesService
}

type mockCreateOrderService struct {
	response      *binance.CreateOrderResponse
	err           error
	called        bool
	symbol        string
	side          binance.SideType
	orderTyp      binance.OrderType
	quantity      string
	quoteOrderQty string
	price         string
	tif           binance.TimeInForceType
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol
	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side
	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderTyp = orderType
	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity
	return m
}

func (m *mockCreateOrderService) QuoteOrderQty(quoteOrderQty string) CreateOrderService {
	m.quoteOrderQty = quoteOrderQty
	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price
	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.tif = tif
	return m
}

func (m *mockCreateOrderService) Do(_ context.Context) (*binance.CreateOrderResponse, error) {
	m.called = true
	return m.response, m.err
}

type mockGetAccountService struct {
	account *binance.Account
	err     error
}

func (m *mockGetAccountService) Do(_ context.Context) (*binance.Account, error) {
	return m.account, m.err
}

type mockListPricesService struct {
	prices []*binance.SymbolPrice
	err    error
	symbol string
}

func (m *mockListPricesService) Symbol(symbol string) ListPricesService {
	m.symbol = symbol
	return m
}

func (m *mockListPricesService) Do(_ context.Context) ([]*binance.SymbolPrice, error) {
	return m.prices, m.err
}

type BinanceGatewayTestSuite struct {
	suite.Suite
	client  *mockBinanceClient
	gateway *BinanceGateway
	ctx     context.Context
}

func TestBinanceGatewaySuite(t *testing.T) {
	suite.Run(t, new(BinanceGatewayTestSuite))
}

func (suite *BinanceGatewayTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.client = newMockBinanceClient()
	suite.gateway = newBinanceGatewayWithClient(suite.client, logger.NewNopLogger())
}

func (suite *BinanceGatewayTestSuite) TestBinanceSymbol() {
	suite.Equal("ETHMXN", BinanceSymbol(types.Pair("eth_mxn")))
	suite.Equal("BTCUSDT", BinanceSymbol(types.Pair("btc_usdt")))
}

func (suite *BinanceGatewayTestSuite) TestGetTicker() {
	suite.client.listPricesService.prices = []*binance.SymbolPrice{
		{Symbol: "ETHMXN", Price: "50123.45"},
	}

	ticker, err := suite.gateway.GetTicker(suite.ctx, types.Pair("eth_mxn"))
	suite.Require().NoError(err)
	suite.Equal("ETHMXN", suite.client.listPricesService.symbol)
	suite.Equal(50123.45, ticker.Last)
	suite.True(ticker.CreatedAt.IsZero())
}

func (suite *BinanceGatewayTestSuite) TestGetTickerErrors() {
	tests := []struct {
		name     string
		prices   []*binance.SymbolPrice
		err      error
		expected errors.ErrorCode
	}{
		{"request failure", nil, stderrors.New("timeout"), errors.ErrCodeExchangeRequestFailed},
		{"missing symbol", []*binance.SymbolPrice{{Symbol: "BTCMXN", Price: "1"}}, nil, errors.ErrCodeDataNotFound},
		{"bad price", []*binance.SymbolPrice{{Symbol: "ETHMXN", Price: "abc"}}, nil, errors.ErrCodeExchangeResponse},
		{"zero price", []*binance.SymbolPrice{{Symbol: "ETHMXN", Price: "0"}}, nil, errors.ErrCodeExchangeResponse},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.client.listPricesService.prices = tc.prices
			suite.client.listPricesService.err = tc.err

			_, err := suite.gateway.GetTicker(suite.ctx, types.Pair("eth_mxn"))
			suite.Require().Error(err)
			suite.Equal(tc.expected, errors.GetCode(err))
		})
	}
}

func (suite *BinanceGatewayTestSuite) TestGetAccountStatus() {
	suite.client.getAccountService.account = &binance.Account{CanTrade: true}

	status, err := suite.gateway.GetAccountStatus(suite.ctx)
	suite.Require().NoError(err)
	suite.True(status.Active)
	suite.Equal("active", status.Status)

	suite.client.getAccountService.account = &binance.Account{CanTrade: false}

	status, err = suite.gateway.GetAccountStatus(suite.ctx)
	suite.Require().NoError(err)
	suite.False(status.Active)
}

func (suite *BinanceGatewayTestSuite) TestGetBalance() {
	suite.client.getAccountService.account = &binance.Account{
		Balances: []binance.Balance{
			{Asset: "MXN", Free: "2500.50", Locked: "100"},
			{Asset: "eth", Free: "0.25", Locked: "0"},
		},
	}

	balances, err := suite.gateway.GetBalance(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(2500.50, balances.Available("MXN"))
	suite.Equal(0.25, balances.Available("ETH"))
}

func (suite *BinanceGatewayTestSuite) TestGetBalanceError() {
	suite.client.getAccountService.err = stderrors.New("api down")

	_, err := suite.gateway.GetBalance(suite.ctx)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeExchangeRequestFailed, errors.GetCode(err))
}

func (suite *BinanceGatewayTestSuite) TestPlaceBuyOrderUsesQuoteQuantity() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{
		Symbol:  "ETHMXN",
		OrderID: 42,
		Status:  binance.OrderStatusTypeFilled,
	}

	result, err := suite.gateway.PlaceOrder(suite.ctx, types.OrderRequest{
		Pair:  types.Pair("eth_mxn"),
		Side:  types.OrderSideBuy,
		Type:  types.OrderTypeMarket,
		Minor: 100.129,
	})
	suite.Require().NoError(err)
	suite.True(result.Success)
	suite.Equal("42", result.OrderID)

	svc := suite.client.createOrderService
	suite.Equal("ETHMXN", svc.symbol)
	suite.Equal(binance.SideTypeBuy, svc.side)
	suite.Equal(binance.OrderTypeMarket, svc.orderTyp)
	suite.Equal("100.12", svc.quoteOrderQty)
	suite.Empty(svc.quantity)
}

func (suite *BinanceGatewayTestSuite) TestPlaceSellOrderUsesBaseQuantity() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{Symbol: "ETHMXN", OrderID: 7}

	result, err := suite.gateway.PlaceOrder(suite.ctx, types.OrderRequest{
		Pair:  types.Pair("eth_mxn"),
		Side:  types.OrderSideSell,
		Type:  types.OrderTypeMarket,
		Major: 0.123456789,
	})
	suite.Require().NoError(err)
	suite.True(result.Success)

	svc := suite.client.createOrderService
	suite.Equal(binance.SideTypeSell, svc.side)
	suite.Equal("0.12345678", svc.quantity)
	suite.Empty(svc.quoteOrderQty)
}

func (suite *BinanceGatewayTestSuite) TestPlaceLimitOrder() {
	suite.client.createOrderService.response = &binance.CreateOrderResponse{Symbol: "ETHMXN", OrderID: 8}

	_, err := suite.gateway.PlaceOrder(suite.ctx, types.OrderRequest{
		Pair:  types.Pair("eth_mxn"),
		Side:  types.OrderSideSell,
		Type:  types.OrderTypeLimit,
		Major: 0.5,
		Price: 51000,
	})
	suite.Require().NoError(err)

	svc := suite.client.createOrderService
	suite.Equal(binance.OrderTypeLimit, svc.orderTyp)
	suite.Equal("51000", svc.price)
	suite.Equal(binance.TimeInForceTypeGTC, svc.tif)
}

func (suite *BinanceGatewayTestSuite) TestPlaceOrderBelowPrecision() {
	result, err := suite.gateway.PlaceOrder(suite.ctx, types.OrderRequest{
		Pair:  types.Pair("eth_mxn"),
		Side:  types.OrderSideSell,
		Type:  types.OrderTypeMarket,
		Major: 0.000000001,
	})
	suite.Require().Error(err)
	suite.False(result.Success)
	suite.Equal(errors.ErrCodeOrderBelowMinimum, errors.GetCode(err))
	suite.False(suite.client.createOrderService.called)
}

func (suite *BinanceGatewayTestSuite) TestPlaceOrderFailure() {
	tests := []struct {
		name     string
		err      error
		expected errors.ErrorCode
	}{
		{"generic rejection", stderrors.New("<APIError> code=-1013, msg=Filter failure: LOT_SIZE"), errors.ErrCodeOrderFailed},
		{"balance rejection", stderrors.New("<APIError> code=-2010, msg=Account has insufficient balance for requested action."), errors.ErrCodeInsufficientBalance},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.client.createOrderService.err = tc.err

			result, err := suite.gateway.PlaceOrder(suite.ctx, types.OrderRequest{
				Pair:  types.Pair("eth_mxn"),
				Side:  types.OrderSideSell,
				Type:  types.OrderTypeMarket,
				Major: 0.1,
			})
			suite.Require().Error(err)
			suite.False(result.Success)
			suite.Equal(tc.err.Error(), result.ErrorMessage)
			suite.Equal(tc.expected, errors.GetCode(err))
		})
	}
}

func (suite *BinanceGatewayTestSuite) TestNewBinanceGatewayMissingCredentials() {
	_, err := NewBinanceGateway(BinanceConfig{}, logger.NewNopLogger())
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeMissingCredentials, errors.GetCode(err))
}
