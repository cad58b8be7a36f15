// Package bitsotest provides an in-process Bitso API server for tests.
// It serves the public ticker and the signed account, balance and order
// endpoints, verifies request signatures, and fills market orders
// immediately against the configured prices.
package bitsotest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	DefaultAPIKey    = "test-key"
	DefaultAPISecret = "test-secret"

	apiPrefix = "/api/v3"
)

// ServerConfig holds the initial state of the mock server.
type ServerConfig struct {
	APIKey          string
	APISecret       string
	InitialBalances map[string]float64
	Prices          map[string]float64
	TakerFee        float64
	AccountStatus   string
}

// Order is an order accepted by the server.
type Order struct {
	OID    string
	Book   string
	Side   string
	Type   string
	Major  float64
	Minor  float64
	Price  float64
	Filled time.Time
}

// MockBitsoServer provides a mock Bitso server for testing.
type MockBitsoServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	apiKey    string
	apiSecret string
	takerFee  float64

	accountStatus string
	balances      map[string]float64
	prices        map[string]float64
	priceTimes    map[string]time.Time
	orders        []Order
	requests      map[string]int
	failures      map[string]int
}

// NewMockBitsoServer creates a server from config. Empty credentials fall
// back to DefaultAPIKey and DefaultAPISecret.
func NewMockBitsoServer(config ServerConfig) *MockBitsoServer {
	server := &MockBitsoServer{
		apiKey:        config.APIKey,
		apiSecret:     config.APISecret,
		takerFee:      config.TakerFee,
		accountStatus: config.AccountStatus,
		balances:      make(map[string]float64),
		prices:        make(map[string]float64),
		priceTimes:    make(map[string]time.Time),
		requests:      make(map[string]int),
		failures:      make(map[string]int),
	}

	if server.apiKey == "" {
		server.apiKey = DefaultAPIKey
	}

	if server.apiSecret == "" {
		server.apiSecret = DefaultAPISecret
	}

	if server.accountStatus == "" {
		server.accountStatus = "active"
	}

	for currency, amount := range config.InitialBalances {
		server.balances[strings.ToLower(currency)] = amount
	}

	for book, price := range config.Prices {
		server.prices[book] = price
	}

	return server
}

// Start begins serving on address. An empty address picks a free port.
func (s *MockBitsoServer) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.Use(s.countRequests)

	api := router.PathPrefix(apiPrefix).Subrouter()
	api.HandleFunc("/ticker", s.handleTicker).Methods(http.MethodGet)
	api.HandleFunc("/account_status", s.signed(s.handleAccountStatus)).Methods(http.MethodGet)
	api.HandleFunc("/balance", s.signed(s.handleBalance)).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.signed(s.handleCreateOrder)).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts the server down.
func (s *MockBitsoServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL is the API root to configure a gateway with.
func (s *MockBitsoServer) BaseURL() string {
	return "http://" + s.listener.Addr().String() + apiPrefix
}

// APIKey returns the key the server accepts.
func (s *MockBitsoServer) APIKey() string {
	return s.apiKey
}

// APISecret returns the secret the server verifies signatures with.
func (s *MockBitsoServer) APISecret() string {
	return s.apiSecret
}

// SetPrice sets the last price of a book, stamped with the current time.
func (s *MockBitsoServer) SetPrice(book string, price float64) {
	s.SetPriceAt(book, price, time.Now())
}

// SetPriceAt sets the last price of a book with an explicit timestamp.
func (s *MockBitsoServer) SetPriceAt(book string, price float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[book] = price
	s.priceTimes[book] = at
}

// SetBalance sets the available amount of a currency.
func (s *MockBitsoServer) SetBalance(currency string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[strings.ToLower(currency)] = amount
}

// GetBalance returns the available amount of a currency.
func (s *MockBitsoServer) GetBalance(currency string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[strings.ToLower(currency)]
}

// SetAccountStatus changes the reported account status.
func (s *MockBitsoServer) SetAccountStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accountStatus = status
}

// FailNext makes the next n requests to path answer HTTP 500 with no body.
// path is relative to the API root, e.g. "/balance".
func (s *MockBitsoServer) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[apiPrefix+path] = n
}

// Orders returns the accepted orders in arrival order.
func (s *MockBitsoServer) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]Order, len(s.orders))
	copy(orders, s.orders)

	return orders
}

// RequestCount returns how many requests reached path, relative to the API root.
func (s *MockBitsoServer) RequestCount(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests[apiPrefix+path]
}

func (s *MockBitsoServer) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++

		failing := s.failures[r.URL.Path] > 0
		if failing {
			s.failures[r.URL.Path]--
		}
		s.mu.Unlock()

		if failing {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// signed verifies the Authorization header before calling next.
func (s *MockBitsoServer) signed(next func(http.ResponseWriter, *http.Request, []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "0100", "Unreadable body")

			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bitso ") {
			writeError(w, http.StatusUnauthorized, "0201", "Missing authorization")

			return
		}

		parts := strings.Split(strings.TrimPrefix(header, "Bitso "), ":")
		if len(parts) != 3 || parts[0] != s.apiKey {
			writeError(w, http.StatusUnauthorized, "0201", "Invalid API key")

			return
		}

		nonce, signature := parts[1], parts[2]
		if len(nonce) != 19 {
			writeError(w, http.StatusUnauthorized, "0202", "Invalid nonce")

			return
		}

		mac := hmac.New(sha256.New, []byte(s.apiSecret))
		mac.Write([]byte(nonce + r.Method + r.URL.RequestURI() + string(body)))
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(signature)) {
			writeError(w, http.StatusUnauthorized, "0201", "Invalid signature")

			return
		}

		next(w, r, body)
	}
}

func (s *MockBitsoServer) handleTicker(w http.ResponseWriter, r *http.Request) {
	book := r.URL.Query().Get("book")

	s.mu.RLock()
	price, ok := s.prices[book]
	at := s.priceTimes[book]
	s.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusBadRequest, "0301", "Unknown OrderBook "+book)

		return
	}

	if at.IsZero() {
		at = time.Now()
	}

	last := formatAmount(price)
	writePayload(w, map[string]string{
		"book":       book,
		"last":       last,
		"high":       last,
		"low":        last,
		"volume":     "1.0",
		"created_at": at.UTC().Format(time.RFC3339),
	})
}

func (s *MockBitsoServer) handleAccountStatus(w http.ResponseWriter, _ *http.Request, _ []byte) {
	s.mu.RLock()
	status := s.accountStatus
	s.mu.RUnlock()

	writePayload(w, map[string]string{
		"client_id": "1234",
		"status":    status,
	})
}

func (s *MockBitsoServer) handleBalance(w http.ResponseWriter, _ *http.Request, _ []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make([]map[string]string, 0, len(s.balances))
	for currency, amount := range s.balances {
		balances = append(balances, map[string]string{
			"currency":  currency,
			"available": formatAmount(amount),
			"locked":    "0",
			"total":     formatAmount(amount),
		})
	}

	writePayload(w, map[string]any{"balances": balances})
}

func (s *MockBitsoServer) handleCreateOrder(w http.ResponseWriter, _ *http.Request, body []byte) {
	var request map[string]string
	if err := json.Unmarshal(body, &request); err != nil {
		writeError(w, http.StatusBadRequest, "0100", "Invalid JSON body")

		return
	}

	book, side, orderType := request["book"], request["side"], request["type"]
	if book == "" || side == "" || orderType == "" {
		writeError(w, http.StatusBadRequest, "0100", "Missing required parameters")

		return
	}

	major, errMajor := parseOptional(request["major"])
	minor, errMinor := parseOptional(request["minor"])

	if errMajor != nil || errMinor != nil || (major > 0) == (minor > 0) {
		writeError(w, http.StatusBadRequest, "0100", "Exactly one of major or minor is required")

		return
	}

	asset, quote, found := strings.Cut(book, "_")
	if !found {
		writeError(w, http.StatusBadRequest, "0301", "Unknown OrderBook "+book)

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[book]
	if !ok {
		writeError(w, http.StatusBadRequest, "0301", "Unknown OrderBook "+book)

		return
	}

	if orderType == "limit" {
		limit, err := strconv.ParseFloat(request["price"], 64)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "0100", "Invalid price")

			return
		}

		price = limit
	}

	if major == 0 {
		major = minor / price
	} else {
		minor = major * price
	}

	switch side {
	case "buy":
		if s.balances[quote] < minor {
			writeError(w, http.StatusBadRequest, "0379", "Insufficient balance")

			return
		}

		s.balances[quote] -= minor
		s.balances[asset] += major * (1 - s.takerFee)
	case "sell":
		if s.balances[asset] < major {
			writeError(w, http.StatusBadRequest, "0379", "Insufficient balance")

			return
		}

		s.balances[asset] -= major
		s.balances[quote] += minor * (1 - s.takerFee)
	default:
		writeError(w, http.StatusBadRequest, "0100", "Invalid side "+side)

		return
	}

	order := Order{
		OID:    uuid.New().String(),
		Book:   book,
		Side:   side,
		Type:   orderType,
		Major:  major,
		Minor:  minor,
		Price:  price,
		Filled: time.Now(),
	}
	s.orders = append(s.orders, order)

	writePayload(w, map[string]string{"oid": order.OID})
}

func parseOptional(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}

	return strconv.ParseFloat(value, 64)
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func writePayload(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"payload": payload,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
