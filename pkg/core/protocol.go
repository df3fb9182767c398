package core

import "context"

// Protocol defines the interface for exchange-specific protocol implementations.
// A protocol builds requests, signs private ones and turns raw responses into
// payloads the connector normalizes.
type Protocol interface {
	// Name returns the exchange identifier (e.g., "bitteam").
	Name() string

	// Version returns the API version being used.
	Version() string

	// BaseURL returns the production API base URL.
	BaseURL() string

	// BuildRequest constructs a request for the specified operation.
	// The params map contains operation-specific parameters.
	BuildRequest(ctx context.Context, op Operation, params Params) (*Request, error)

	// SignRequest serializes the body, stamps a nonce and adds the authentication headers.
	SignRequest(req *Request, creds Credentials) error

	// ParseResponse maps error envelopes and statuses to typed errors and returns the
	// unwrapped payload of a successful response.
	ParseResponse(op Operation, resp *Response) (any, error)

	// SupportedOperations returns the list of operations this protocol supports.
	SupportedOperations() []Operation
}

// Transport executes a prepared request against the provider. Implementations own
// timeouts, connection reuse and throttling; the connector never retries.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Response is a raw provider response as delivered by a Transport.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError reports whether the status code is 400 or above.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}
