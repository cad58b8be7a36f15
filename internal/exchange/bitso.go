package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// bitsoEnvelope is the common response shape of the Bitso API.
type bitsoEnvelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Error   *bitsoError     `json:"error"`
}

type bitsoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bitsoTicker struct {
	Book      string `json:"book"`
	Last      string `json:"last"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Volume    string `json:"volume"`
	CreatedAt string `json:"created_at"`
}

type bitsoAccountStatus struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

type bitsoBalance struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
	Total     string `json:"total"`
}

type bitsoBalances struct {
	Balances []bitsoBalance `json:"balances"`
}

type bitsoOrderPlaced struct {
	OID string `json:"oid"`
}

// BitsoGateway talks to the Bitso REST API. Private endpoints are signed
// with HMAC-SHA256 and every request waits on a shared rate limiter.
type BitsoGateway struct {
	config  BitsoConfig
	client  *resty.Client
	limiter *rate.Limiter
	nonce   func() string
	logger  *logger.Logger
}

// NewBitsoGateway creates a gateway for the configured environment.
func NewBitsoGateway(cfg BitsoConfig, log *logger.Logger) (*BitsoGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Timeout = defaultDuration(cfg.Timeout, defaultBitsoTimeout)
	if cfg.RateLimit < 0 {
		cfg.RateLimit = defaultBitsoRateLimit
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint(), "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	log.Info("Bitso gateway ready",
		zap.String("endpoint", cfg.Endpoint()),
		zap.Bool("staging", cfg.UseStaging),
		zap.Duration("rate_limit", cfg.RateLimit),
	)

	return &BitsoGateway{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		nonce:   bitsoNonce,
		logger:  log,
	}, nil
}

// bitsoNonce is a 13-digit epoch millisecond timestamp followed by a 6-digit salt.
func bitsoNonce() string {
	return fmt.Sprintf("%013d%06d", time.Now().UnixMilli(), 100000+rand.IntN(900000))
}

// sign returns the Authorization header value for a request.
func (b *BitsoGateway) sign(method, endpoint, body string) string {
	nonce := b.nonce()
	message := nonce + method + bitsoSignaturePrefix + endpoint + body

	mac := hmac.New(sha256.New, []byte(b.config.APISecret))
	mac.Write([]byte(message))
	signature := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("Bitso %s:%s:%s", b.config.APIKey, nonce, signature)
}

// do executes one request and decodes the payload into out.
func (b *BitsoGateway) do(ctx context.Context, method, endpoint string, body []byte, signed bool, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrCodeExchangeRequestFailed, err, "%s %s not sent", method, endpoint)
	}

	req := b.client.R().SetContext(ctx)

	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	if signed {
		req.SetHeader("Authorization", b.sign(method, endpoint, string(body)))
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		b.logger.Error("Bitso request failed", zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(err))

		return errors.Wrapf(errors.ErrCodeExchangeRequestFailed, err, "%s %s failed", method, endpoint)
	}

	var envelope bitsoEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		if resp.IsError() {
			return errors.Newf(errors.ErrCodeExchangeRequestFailed, "%s %s: HTTP %d", method, endpoint, resp.StatusCode())
		}

		return errors.Wrapf(errors.ErrCodeExchangeResponse, err, "%s %s: malformed response", method, endpoint)
	}

	if resp.IsError() || !envelope.Success {
		message := fmt.Sprintf("HTTP %d", resp.StatusCode())
		if envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}

		code := errors.ErrCodeExchangeResponse
		if errors.IsBalanceMessage(message) {
			code = errors.ErrCodeInsufficientBalance
		}

		b.logger.Warn("Bitso returned an error",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", message),
		)

		return errors.Newf(code, "%s %s: %s", method, endpoint, message)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		return errors.Wrapf(errors.ErrCodeExchangeResponse, err, "%s %s: unexpected payload", method, endpoint)
	}

	return nil
}

// GetTicker returns the last price of a book.
func (b *BitsoGateway) GetTicker(ctx context.Context, pair types.Pair) (types.Ticker, error) {
	endpoint := "/ticker?book=" + url.QueryEscape(pair.String())

	var payload bitsoTicker
	if err := b.do(ctx, http.MethodGet, endpoint, nil, false, &payload); err != nil {
		return types.Ticker{}, err
	}

	last, err := cast.ToFloat64E(payload.Last)
	if err != nil || last <= 0 {
		return types.Ticker{}, errors.Newf(errors.ErrCodeExchangeResponse, "invalid last price %q for %s", payload.Last, pair)
	}

	ticker := types.Ticker{
		Pair:   pair,
		Last:   last,
		High:   cast.ToFloat64(payload.High),
		Low:    cast.ToFloat64(payload.Low),
		Volume: cast.ToFloat64(payload.Volume),
	}

	if payload.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, payload.CreatedAt)
		if err != nil {
			b.logger.Debug("Unparseable ticker timestamp", zap.String("created_at", payload.CreatedAt))
		} else {
			ticker.CreatedAt = createdAt
		}
	}

	return ticker, nil
}

// GetAccountStatus reports whether the account status is "active".
func (b *BitsoGateway) GetAccountStatus(ctx context.Context) (types.AccountStatus, error) {
	var payload bitsoAccountStatus
	if err := b.do(ctx, http.MethodGet, "/account_status", nil, true, &payload); err != nil {
		return types.AccountStatus{}, err
	}

	return types.AccountStatus{
		Active: payload.Status == "active",
		Status: payload.Status,
	}, nil
}

// GetBalance returns available balances keyed by upper-case currency.
func (b *BitsoGateway) GetBalance(ctx context.Context) (types.Balances, error) {
	var payload bitsoBalances
	if err := b.do(ctx, http.MethodGet, "/balance", nil, true, &payload); err != nil {
		return nil, err
	}

	balances := make(types.Balances, len(payload.Balances))

	for _, balance := range payload.Balances {
		available, err := cast.ToFloat64E(balance.Available)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeExchangeResponse, err, "invalid available amount for %s", balance.Currency)
		}

		balances[strings.ToUpper(balance.Currency)] = available
	}

	return balances, nil
}

// PlaceOrder submits an order. Amounts are sent as decimal strings.
func (b *BitsoGateway) PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error) {
	if err := order.Validate(); err != nil {
		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, err
	}

	request := map[string]string{
		"book": order.Pair.String(),
		"side": string(order.Side),
		"type": string(order.Type),
	}

	if order.Major > 0 {
		request["major"] = strconv.FormatFloat(order.Major, 'f', -1, 64)
	} else {
		request["minor"] = strconv.FormatFloat(order.Minor, 'f', -1, 64)
	}

	if order.Type == types.OrderTypeLimit {
		request["price"] = strconv.FormatFloat(order.Price, 'f', -1, 64)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to encode order", err)
	}

	var payload bitsoOrderPlaced
	if err := b.do(ctx, http.MethodPost, "/orders", body, true, &payload); err != nil {
		return types.OrderResult{Success: false, ErrorMessage: err.Error()}, err
	}

	b.logger.Info("Order placed",
		zap.String("book", order.Pair.String()),
		zap.String("side", string(order.Side)),
		zap.String("order_id", payload.OID),
	)

	return types.OrderResult{Success: true, OrderID: payload.OID}, nil
}

var _ Gateway = (*BitsoGateway)(nil)
