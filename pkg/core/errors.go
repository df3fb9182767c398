package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a connector error.
type ErrorType int

// Error type constants categorize errors for proper handling.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a network connectivity issue.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates the provider throttled the request.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates missing credentials.
	ErrorTypeAuthentication
	// ErrorTypeInvalidSignature indicates the provider rejected the credentials or signature.
	ErrorTypeInvalidSignature
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates the account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
	// ErrorTypeMalformedResponse indicates a missing envelope or required field.
	ErrorTypeMalformedResponse
	// ErrorTypeMarketNotFound indicates a symbol or pair id could not be resolved.
	ErrorTypeMarketNotFound
	// ErrorTypeCurrencyNotFound indicates a currency code could not be resolved.
	ErrorTypeCurrencyNotFound
	// ErrorTypeInvalidAddress indicates an address failed chain-format validation.
	ErrorTypeInvalidAddress
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"INVALID_SIGNATURE",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INSUFFICIENT_FUNDS",
		"INVALID_ORDER",
		"MALFORMED_RESPONSE",
		"MARKET_NOT_FOUND",
		"CURRENCY_NOT_FOUND",
		"INVALID_ADDRESS",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNoCredentials is returned when a private call is made without API credentials.
	ErrNoCredentials = errors.New("no credentials configured")
)

// ExchangeError represents a structured error produced by the connector or returned by the exchange.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response, zero for local failures.
	StatusCode int `json:"status_code"`
	// Code is the exchange-specific or connector error code.
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// RawError contains the original error response for debugging.
	RawError any `json:"raw_error,omitempty"`
	// Exchange identifies which exchange the error relates to.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, e.Message)
}

// WithCode sets the error code and returns the same error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// WithRaw attaches the raw provider payload and returns the same error for chaining.
func (e *ExchangeError) WithRaw(raw any) *ExchangeError {
	e.RawError = raw
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
// The timestamp is automatically set to the current time.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewExchangeErrorWithCode creates a new ExchangeError including an exchange-specific error code.
func NewExchangeErrorWithCode(exchange string, errorType ErrorType, statusCode int, code, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// MalformedResponse builds a MALFORMED_RESPONSE error.
func MalformedResponse(exchange, format string, args ...any) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeMalformedResponse, 0, fmt.Sprintf(format, args...)).
		WithCode(ErrCodeMalformedResponse)
}

// MarketNotFound builds a MARKET_NOT_FOUND error for the given symbol or id.
func MarketNotFound(exchange, symbol string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeMarketNotFound, 0, fmt.Sprintf("market %q not found", symbol)).
		WithCode(ErrCodeInvalidSymbol)
}

// CurrencyNotFound builds a CURRENCY_NOT_FOUND error for the given code.
func CurrencyNotFound(exchange, code string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeCurrencyNotFound, 0, fmt.Sprintf("currency %q not found", code)).
		WithCode(ErrCodeInvalidCurrency)
}

// AuthenticationRequired builds an AUTHENTICATION error for a private call without credentials.
func AuthenticationRequired(exchange string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeAuthentication, 0, ErrNoCredentials.Error()).
		WithCode(ErrCodeNoCredentials)
}

// InvalidAddress builds an INVALID_ADDRESS error.
func InvalidAddress(exchange, address, network string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeInvalidAddress, 0,
		fmt.Sprintf("address %q is not valid for network %q", address, network)).
		WithCode(ErrCodeInvalidAddress)
}

// IsErrorType returns true if err wraps an ExchangeError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsNetworkError returns true if the error is a network connectivity issue.
func IsNetworkError(err error) bool {
	return IsErrorType(err, ErrorTypeNetwork)
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	return IsErrorType(err, ErrorTypeTimeout)
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	return IsErrorType(err, ErrorTypeRateLimit)
}

// IsAuthenticationError returns true if credentials are missing or were rejected.
func IsAuthenticationError(err error) bool {
	return IsErrorType(err, ErrorTypeAuthentication) || IsErrorType(err, ErrorTypeInvalidSignature)
}

// IsTerminalError returns true if the error should not be retried.
func IsTerminalError(err error) bool {
	var e *ExchangeError
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeInsufficientFunds,
		ErrorTypeInvalidOrder,
		ErrorTypeNotFound,
		ErrorTypeMalformedResponse,
		ErrorTypeMarketNotFound,
		ErrorTypeCurrencyNotFound,
		ErrorTypeAuthentication,
		ErrorTypeInvalidSignature,
		ErrorTypeInvalidAddress:
		return true
	}
	return false
}

// ErrorTypeFromStatus maps an HTTP status code to an ErrorType.
// signed reports whether the request carried credentials, in which case a 401/403
// means the signature was rejected rather than missing.
func ErrorTypeFromStatus(statusCode int, signed bool) ErrorType {
	switch {
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		if signed {
			return ErrorTypeInvalidSignature
		}
		return ErrorTypeAuthentication
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}
