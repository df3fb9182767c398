package bitteam

import (
	"strings"

	"github.com/bytedance/sonic"

	"bitteam/internal/safe"
	"bitteam/pkg/core"
)

// Numbers stay json.Number so decimals are parsed from their exact text.
var decoder = sonic.Config{UseNumber: true}.Froze()

// decodeBody parses a response body into a JSON object.
func decodeBody(body []byte) (map[string]any, error) {
	var raw map[string]any
	if err := decoder.Unmarshal(body, &raw); err != nil {
		return nil, core.MalformedResponse(exchangeName, "decode response: %v", err)
	}
	if raw == nil {
		return nil, core.MalformedResponse(exchangeName, "response is not an object")
	}
	return raw, nil
}

// Unwrap returns raw.result[field], or raw.result when field is empty.
// A missing result, or a non-object result when a field is requested, is a
// MALFORMED_RESPONSE error.
func Unwrap(raw map[string]any, field string) (any, error) {
	result, ok := raw["result"]
	if !ok || result == nil {
		return nil, core.MalformedResponse(exchangeName, "response has no result")
	}
	if field == "" {
		return result, nil
	}
	obj, ok := result.(map[string]any)
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "result is %T, expected object with %q", result, field)
	}
	return obj[field], nil
}

// envelopeError converts a {ok:false, message} envelope or an HTTP error status
// into a typed error. It returns nil for successful envelopes.
func envelopeError(raw map[string]any, statusCode int, signed bool) error {
	ok, hasOK := safe.Bool(raw, "ok")
	if statusCode < 400 && (!hasOK || ok) {
		return nil
	}

	message := safe.FirstString(raw, "message", "error", "msg")
	if message == "" {
		message = "request failed"
	}

	errType := core.ErrorTypeFromStatus(statusCode, signed)
	if t, matched := classifyMessage(message, signed); matched {
		errType = t
	} else if statusCode < 400 {
		errType = core.ErrorTypeBadRequest
	}

	return core.NewExchangeErrorWithCode(exchangeName, errType, statusCode, errorCode(errType), message).
		WithRaw(raw)
}

func classifyMessage(message string, signed bool) (core.ErrorType, bool) {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "insufficient"), strings.Contains(m, "not enough"):
		return core.ErrorTypeInsufficientFunds, true
	case strings.Contains(m, "signature"), strings.Contains(m, "nonce"):
		return core.ErrorTypeInvalidSignature, true
	case strings.Contains(m, "unauthorized"), strings.Contains(m, "api key"), strings.Contains(m, "apikey"):
		if signed {
			return core.ErrorTypeInvalidSignature, true
		}
		return core.ErrorTypeAuthentication, true
	case strings.Contains(m, "too many"), strings.Contains(m, "rate limit"):
		return core.ErrorTypeRateLimit, true
	case strings.Contains(m, "not found"):
		return core.ErrorTypeNotFound, true
	case strings.Contains(m, "amount"), strings.Contains(m, "price"), strings.Contains(m, "order"):
		return core.ErrorTypeInvalidOrder, true
	}
	return core.ErrorTypeUnknown, false
}

func errorCode(t core.ErrorType) string {
	switch t {
	case core.ErrorTypeInsufficientFunds:
		return string(core.ErrCodeInsufficientFunds)
	case core.ErrorTypeInvalidSignature:
		return string(core.ErrCodeInvalidSignature)
	case core.ErrorTypeAuthentication:
		return string(core.ErrCodeAuth)
	case core.ErrorTypeRateLimit:
		return string(core.ErrCodeRateLimit)
	case core.ErrorTypeNotFound:
		return string(core.ErrCodeNotFound)
	case core.ErrorTypeInvalidOrder:
		return string(core.ErrCodeInvalidOrder)
	case core.ErrorTypeServerError:
		return string(core.ErrCodeServerError)
	default:
		return string(core.ErrCodeBadRequest)
	}
}
