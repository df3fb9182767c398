package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"bitteam/internal/ratelimit"
	"bitteam/pkg/core"
)

// Client is a resty-backed core.Transport. It never interprets response bodies;
// status handling is left to the protocol.
type Client struct {
	client   *resty.Client
	exchange string
	limiter  *ratelimit.RateLimiter
	logger   zerolog.Logger
	mu       sync.RWMutex
	closed   bool
}

type Config struct {
	Exchange     string            `validate:"required"`
	BaseURL      string            `validate:"required,url"`
	Timeout      time.Duration     `validate:"min=1ms"`
	MaxRetries   int               `validate:"min=0"`
	RetryWaitMin time.Duration     `validate:"min=0"`
	RetryWaitMax time.Duration     `validate:"min=0"`
	Headers      map[string]string `validate:"omitempty"`
}

type Option func(*Client)

// WithLogger sets the logger used for request and response tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRateLimiter throttles every request through rl before it is sent.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = rl
	}
}

func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		exchange: config.Exchange,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(config.BaseURL, "/"))
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(config.MaxRetries)
	client.SetRetryWaitTime(config.RetryWaitMin)
	client.SetRetryMaxWaitTime(config.RetryWaitMax)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})
	client.SetHeader("Accept", "application/json")
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	logger := c.logger
	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})
	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Dur("duration", resp.Duration()).
			Msg("http response")
		return nil
	})

	c.client = client
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Do sends req and returns the raw response. Any status code is a successful
// round trip; only transport failures are errors, typed as NETWORK, TIMEOUT or
// RATE_LIMIT when the local limiter gives up.
// The caller's cancellation is returned as ctx.Err().
func (c *Client) Do(ctx context.Context, req *core.Request) (*core.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.NewExchangeError(c.exchange, core.ErrorTypeNetwork, 0, core.ErrClientClosed.Error()).
			WithCode(core.ErrCodeClientClosed)
	}

	if c.limiter != nil {
		bucket := ratelimit.BucketPublic
		if req.RequireAuth {
			bucket = ratelimit.BucketPrivate
		}
		if err := c.limiter.Wait(ctx, bucket); err != nil {
			if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
				return nil, ctxErr
			}
			exErr := core.NewExchangeError(c.exchange, core.ErrorTypeRateLimit, 0, "local rate limit wait aborted").
				WithCode(core.ErrCodeRateLimit)
			return nil, fmt.Errorf("%w: %w", exErr, err)
		}
	}

	r := c.client.R().SetContext(ctx).SetHeaders(req.Headers)
	if req.Payload != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Payload)
	}

	resp, err := r.Execute(req.Method, "/"+strings.TrimLeft(req.PathWithQuery(), "/"))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	headers := make(map[string]string, len(resp.Header()))
	for k := range resp.Header() {
		headers[k] = resp.Header().Get(k)
	}

	return &core.Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Bytes(),
		Headers:    headers,
	}, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		exErr := core.NewExchangeError(c.exchange, core.ErrorTypeTimeout, 0, "request timed out").
			WithCode(core.ErrCodeTimeout)
		return fmt.Errorf("%w: %w", exErr, err)
	}

	exErr := core.NewExchangeError(c.exchange, core.ErrorTypeNetwork, 0, "request failed").
		WithCode(core.ErrCodeNetwork)
	return fmt.Errorf("%w: %w", exErr, err)
}
