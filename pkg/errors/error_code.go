package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidPair          ErrorCode = 103
	ErrCodeInvalidStopLoss      ErrorCode = 104
	ErrCodeInvalidTakeProfit    ErrorCode = 105
	ErrCodeInvalidVersion       ErrorCode = 107
	ErrCodeVersionMismatch      ErrorCode = 108

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound ErrorCode = 200
	ErrCodeQueryFailed  ErrorCode = 201

	// Strategy errors (400-499)
	ErrCodeUnsupportedStrategy ErrorCode = 400

	// Trading errors (500-599)
	ErrCodeOrderFailed         ErrorCode = 500
	ErrCodeOrderBelowMinimum   ErrorCode = 501
	ErrCodeInsufficientBalance ErrorCode = 502
	ErrCodeAccountInactive     ErrorCode = 503

	// Exchange errors (600-699)
	ErrCodeExchangeRequestFailed ErrorCode = 600
	ErrCodeExchangeResponse      ErrorCode = 601
	ErrCodeUnsupportedProvider   ErrorCode = 602
	ErrCodeMissingCredentials    ErrorCode = 603

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702

	// Ledger errors (800-899)
	ErrCodeReconciliationError ErrorCode = 801
	ErrCodeJournalWriteFailed  ErrorCode = 802
)
