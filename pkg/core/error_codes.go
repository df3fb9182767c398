package core

import "errors"

// ErrorCode represents a stable, machine-readable error identifier.
type ErrorCode string

// Error code constants.
const (
	ErrCodeNetwork           ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeRateLimit         ErrorCode = "RATE_LIMIT"
	ErrCodeAuth              ErrorCode = "AUTH_ERROR"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeServerError       ErrorCode = "SERVER_ERROR"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidOrder      ErrorCode = "INVALID_ORDER"
	// ErrCodeInvalidSymbol indicates the trading pair is not recognized.
	ErrCodeInvalidSymbol ErrorCode = "INVALID_SYMBOL"
	// ErrCodeInvalidCurrency indicates the currency code is not recognized.
	ErrCodeInvalidCurrency ErrorCode = "INVALID_CURRENCY"
	// ErrCodeInvalidAddress indicates an address failed format validation.
	ErrCodeInvalidAddress ErrorCode = "INVALID_ADDRESS"
	// ErrCodeMalformedResponse indicates the response envelope or a required field was missing.
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Client state errors
	ErrCodeClientClosed ErrorCode = "CLIENT_CLOSED"

	// Authentication errors
	ErrCodeNoCredentials    ErrorCode = "NO_CREDENTIALS"
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// Unsupported operation or parameter
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
)

// IsErrorCode checks if the error matches the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
