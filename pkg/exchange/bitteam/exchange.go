package bitteam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bitteam/internal/address"
	httpClient "bitteam/internal/http"
	"bitteam/internal/ratelimit"
	"bitteam/pkg/core"
	"bitteam/pkg/exchange"
	"bitteam/pkg/market"
)

var _ exchange.Exchange = (*Exchange)(nil)

// Timeframes maps canonical OHLCV timeframes to provider resolutions.
var Timeframes = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"60m": "60",
	"1h":  "60",
	"1d":  "1D",
}

// Order list filters accepted by ordersOfUser.
const (
	ordersActive = "active"
	ordersClosed = "closed"
	ordersAll    = "all"
)

// Exchange is the BitTeam connector facade. Every call builds a request through
// the Protocol, sends it over the transport and normalizes the payload.
// Exchange is safe for concurrent use; the market and currency caches are its
// only shared state.
type Exchange struct {
	config     *core.Config
	protocol   *Protocol
	normalizer *Normalizer
	transport  core.Transport
	history    core.Transport
	markets    *market.Cache
	currencies *currencyCache
	logger     zerolog.Logger
	closers    []io.Closer

	newClientOrderID func() string
}

// Option is a functional option for configuring the Exchange.
type Option func(*Options)

// Options holds configuration options for the Exchange.
type Options struct {
	Logger zerolog.Logger
	// Transport replaces the HTTP client for both the trade and history APIs.
	Transport core.Transport
	Nonces    *NonceSource
}

// WithLogger returns an option that sets the logger for the exchange.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithTransport returns an option that sends all requests through t.
func WithTransport(t core.Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}

// WithNonceSource returns an option that sets the nonce source used for signing.
// Connectors sharing one API key must share one source.
func WithNonceSource(n *NonceSource) Option {
	return func(o *Options) {
		o.Nonces = n
	}
}

// New creates a BitTeam connector. Without WithTransport it talks to the
// production hosts unless config overrides them.
func New(config *core.Config, opts ...Option) (*Exchange, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.Logger.With().Str("exchange", exchangeName).Logger()

	e := &Exchange{
		config:           config,
		protocol:         NewProtocol(options.Nonces),
		currencies:       newCurrencyCache(),
		logger:           logger,
		newClientOrderID: uuid.NewString,
	}
	e.markets = market.NewCache(exchangeName, e.FetchMarkets, market.WithLogger(logger))
	e.normalizer = NewNormalizer(e.markets, address.New(), WithNormalizerLogger(logger))

	if options.Transport != nil {
		e.transport = options.Transport
		e.history = options.Transport
		return e, nil
	}

	var limiter *ratelimit.RateLimiter
	if config.RateLimitRequests > 0 {
		limiter = ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)
	}

	tradeURL, historyURL := hosts(config)

	trade, err := newHTTPClient(config, tradeURL, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	history, err := newHTTPClient(config, historyURL, limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("create history client: %w", err)
	}
	e.transport, e.history = trade, history
	e.closers = []io.Closer{trade, history}

	return e, nil
}

func newHTTPClient(config *core.Config, baseURL string, limiter *ratelimit.RateLimiter, logger zerolog.Logger) (*httpClient.Client, error) {
	opts := []httpClient.Option{httpClient.WithLogger(logger)}
	if limiter != nil {
		opts = append(opts, httpClient.WithRateLimiter(limiter))
	}
	return httpClient.NewClient(&httpClient.Config{
		Exchange:     exchangeName,
		BaseURL:      baseURL,
		Timeout:      config.Timeout,
		MaxRetries:   config.MaxRetries,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
	}, opts...)
}

// hosts returns the trade and candle history base URLs. BaseURL overrides both
// hosts and HistoryURL overrides the history host alone.
func hosts(config *core.Config) (trade, history string) {
	trade, history = ProductionURL, HistoryURL
	if config.BaseURL != "" {
		trade, history = config.BaseURL, config.BaseURL
	}
	if config.HistoryURL != "" {
		history = config.HistoryURL
	}
	return trade, history
}

// Register creates a connector and adds it to container under its name.
func Register(container *exchange.Container, config *core.Config, opts ...Option) error {
	ex, err := New(config, opts...)
	if err != nil {
		return err
	}
	container.Register(ex.Name(), ex)
	return nil
}

func (e *Exchange) Name() string {
	return exchangeName
}

func (e *Exchange) Version() string {
	return e.protocol.Version()
}

// Close releases the HTTP clients owned by the exchange.
func (e *Exchange) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Markets exposes the market cache.
func (e *Exchange) Markets() *market.Cache {
	return e.markets
}

// FetchCurrencies retrieves all listed currencies and refreshes the currency
// cache used by deposit address and transaction calls.
func (e *Exchange) FetchCurrencies(ctx context.Context) ([]core.Currency, error) {
	data, err := e.fetchList(ctx, e.transport, core.OpFetchCurrencies, nil)
	if err != nil {
		return nil, err
	}

	currencies, err := e.normalizer.NormalizeCurrencies(data)
	if err != nil {
		return nil, err
	}
	e.currencies.replace(currencies)
	return currencies, nil
}

// FetchMarkets retrieves all trading pairs. It does not touch the market cache;
// use LoadMarkets for that.
func (e *Exchange) FetchMarkets(ctx context.Context) ([]core.Market, error) {
	data, err := e.fetchList(ctx, e.transport, core.OpFetchMarkets, nil)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeMarkets(data)
}

// LoadMarkets populates the market cache once, or again when reload is set, and
// returns its contents.
func (e *Exchange) LoadMarkets(ctx context.Context, reload bool) ([]core.Market, error) {
	load := e.markets.EnsureLoaded
	if reload {
		load = e.markets.Refresh
	}
	if err := load(ctx); err != nil {
		return nil, err
	}
	return e.markets.Markets(), nil
}

// FetchTicker retrieves the ticker of a market.
func (e *Exchange) FetchTicker(ctx context.Context, symbol string) (*core.Ticker, error) {
	m, raw, err := e.fetchPair(ctx, core.OpFetchTicker, symbol)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeTicker(raw, m)
}

// FetchOrderBook retrieves the order book of a market.
func (e *Exchange) FetchOrderBook(ctx context.Context, symbol string) (*core.OrderBook, error) {
	m, raw, err := e.fetchPair(ctx, core.OpFetchOrderBook, symbol)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeOrderBook(raw, m)
}

func (e *Exchange) fetchPair(ctx context.Context, op core.Operation, symbol string) (*core.Market, map[string]any, error) {
	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	raw, err := e.fetchRecord(ctx, e.transport, op, core.Params{"name": m.ID})
	if err != nil {
		return nil, nil, err
	}
	return m, raw, nil
}

// FetchOHLCV retrieves candles for one of the Timeframes.
func (e *Exchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, opts ...exchange.Option) ([]core.OHLCV, error) {
	resolution, ok := Timeframes[timeframe]
	if !ok {
		return nil, core.NewExchangeError(exchangeName, core.ErrorTypeBadRequest, 0,
			fmt.Sprintf("unsupported timeframe: %s", timeframe)).
			WithCode(core.ErrCodeUnsupported)
	}
	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	options := exchange.ApplyOptions(opts...)

	params := withParams(core.Params{"pairName": m.ID, "resolution": resolution}, options)
	data, err := e.fetchList(ctx, e.history, core.OpFetchOHLCV, params)
	if err != nil {
		return nil, err
	}

	candles, err := e.normalizer.NormalizeOHLCV(data)
	if err != nil {
		return nil, err
	}
	return exchange.FilterBySinceLimit(candles, ohlcvTime, options.Since, options.Limit), nil
}

// FetchTrades retrieves recent public trades of a market.
func (e *Exchange) FetchTrades(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Trade, error) {
	m, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	options := exchange.ApplyOptions(opts...)

	data, err := e.fetchList(ctx, e.transport, core.OpFetchTrades, withParams(core.Params{"pair": m.ID}, options))
	if err != nil {
		return nil, err
	}

	trades, err := e.normalizer.NormalizeTrades(data, m)
	if err != nil {
		return nil, err
	}
	return exchange.FilterBySinceLimit(trades, tradeTime, options.Since, options.Limit), nil
}

// FetchOrder retrieves a single order of the account.
func (e *Exchange) FetchOrder(ctx context.Context, id string) (*core.Order, error) {
	if err := e.markets.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	raw, err := e.fetchRecord(ctx, e.transport, core.OpFetchOrder, core.Params{"id": id})
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeOrder(raw, nil)
}

// FetchOrders retrieves orders of the account in any state. An empty symbol
// means all markets.
func (e *Exchange) FetchOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.fetchOrders(ctx, ordersAll, symbol, opts...)
}

// FetchOpenOrders retrieves orders that are still working.
func (e *Exchange) FetchOpenOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.fetchOrders(ctx, ordersActive, symbol, opts...)
}

// FetchClosedOrders retrieves orders in a final state.
func (e *Exchange) FetchClosedOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.fetchOrders(ctx, ordersClosed, symbol, opts...)
}

func (e *Exchange) fetchOrders(ctx context.Context, filter, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	m, err := e.optionalMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	options := exchange.ApplyOptions(opts...)

	params := core.Params{"type": filter}
	if m != nil {
		params["pairId"] = m.NumericID
	}
	data, err := e.fetchList(ctx, e.transport, core.OpFetchOrders, withParams(params, options))
	if err != nil {
		return nil, err
	}

	orders, err := e.normalizer.NormalizeOrders(data, m)
	if err != nil {
		return nil, err
	}
	return exchange.FilterBySinceLimit(orders, orderTime, options.Since, options.Limit), nil
}

// FetchMyTrades retrieves executions of the account. An empty symbol means all
// markets.
func (e *Exchange) FetchMyTrades(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Trade, error) {
	m, err := e.optionalMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}
	options := exchange.ApplyOptions(opts...)

	params := core.Params{}
	if m != nil {
		params["pairId"] = m.NumericID
	}
	data, err := e.fetchList(ctx, e.transport, core.OpFetchMyTrades, withParams(params, options))
	if err != nil {
		return nil, err
	}

	trades, err := e.normalizer.NormalizeTrades(data, m)
	if err != nil {
		return nil, err
	}
	return exchange.FilterBySinceLimit(trades, tradeTime, options.Since, options.Limit), nil
}

// FetchBalance retrieves the account balances.
func (e *Exchange) FetchBalance(ctx context.Context) (*core.Balances, error) {
	data, err := e.fetchList(ctx, e.transport, core.OpFetchBalance, nil)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeBalances(data)
}

// FetchDepositAddress retrieves and validates the deposit address for a currency
// code.
func (e *Exchange) FetchDepositAddress(ctx context.Context, code string) (*core.DepositAddress, error) {
	currency, err := e.currency(ctx, code)
	if err != nil {
		return nil, err
	}
	raw, err := e.fetchRecord(ctx, e.transport, core.OpFetchDepositAddress, core.Params{"symbol": currency.ID})
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeDepositAddress(raw, currency)
}

// FetchDeposits retrieves deposits of the account. An empty code means all
// currencies.
func (e *Exchange) FetchDeposits(ctx context.Context, code string, opts ...exchange.Option) ([]core.Transaction, error) {
	return e.fetchTransactions(ctx, core.TransactionDeposit, code, opts...)
}

// FetchWithdrawals retrieves withdrawals of the account. An empty code means all
// currencies.
func (e *Exchange) FetchWithdrawals(ctx context.Context, code string, opts ...exchange.Option) ([]core.Transaction, error) {
	return e.fetchTransactions(ctx, core.TransactionWithdraw, code, opts...)
}

func (e *Exchange) fetchTransactions(ctx context.Context, kind core.TransactionType, code string, opts ...exchange.Option) ([]core.Transaction, error) {
	var currency *core.Currency
	if code != "" {
		c, err := e.currency(ctx, code)
		if err != nil {
			return nil, err
		}
		currency = c
	}
	options := exchange.ApplyOptions(opts...)

	params := core.Params{"type": kind.String()}
	if currency != nil {
		params["symbol"] = currency.ID
	}
	data, err := e.fetchList(ctx, e.transport, core.OpFetchTransactions, withParams(params, options))
	if err != nil {
		return nil, err
	}

	txs, err := e.normalizer.NormalizeTransactions(data, kind)
	if err != nil {
		return nil, err
	}

	filtered := txs[:0]
	for _, tx := range txs {
		if tx.Type != kind {
			continue
		}
		if currency != nil && tx.Currency != currency.Code {
			continue
		}
		filtered = append(filtered, tx)
	}
	return exchange.FilterBySinceLimit(filtered, transactionTime, options.Since, options.Limit), nil
}

// CreateOrder places an order. A ClientOrderID is generated when none is given.
func (e *Exchange) CreateOrder(ctx context.Context, req *exchange.OrderRequest) (*core.Order, error) {
	if req.Amount.Sign() <= 0 {
		return nil, invalidOrder("amount must be positive")
	}
	if req.Type == core.TypeLimit && (req.Price == nil || req.Price.Sign() <= 0) {
		return nil, invalidOrder("limit order requires a positive price")
	}

	m, err := e.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if m.NumericID == 0 {
		return nil, invalidOrder(fmt.Sprintf("market %s has no numeric id", m.Symbol))
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = e.newClientOrderID()
	}

	params := core.Params{
		"pairId":        strconv.FormatInt(m.NumericID, 10),
		"side":          req.Side.String(),
		"type":          req.Type.String(),
		"amount":        req.Amount.String(),
		"clientOrderId": clientOrderID,
	}
	if req.Type == core.TypeLimit {
		params["price"] = req.Price.String()
	}

	raw, err := e.fetchRecord(ctx, e.transport, core.OpCreateOrder, params)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("symbol", m.Symbol).
		Str("side", req.Side.String()).
		Str("type", req.Type.String()).
		Str("client_order_id", clientOrderID).
		Msg("order created")

	return e.normalizer.NormalizeOrder(raw, m)
}

// CancelOrder cancels an order. The provider only acknowledges the request, so
// the returned order carries the id, the symbol when given, and the canceled
// status.
func (e *Exchange) CancelOrder(ctx context.Context, id, symbol string) (*core.Order, error) {
	m, err := e.optionalMarket(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result, err := e.call(ctx, e.transport, core.OpCancelOrder, core.Params{"id": id})
	if err != nil {
		return nil, err
	}

	order := &core.Order{
		ID:     id,
		Status: core.StatusCanceled,
	}
	if m != nil {
		order.Symbol = m.Symbol
	}
	if raw, ok := result.(map[string]any); ok {
		order.Info = raw
	}
	return order, nil
}

// market resolves a canonical symbol against the loaded markets.
func (e *Exchange) market(ctx context.Context, symbol string) (*core.Market, error) {
	if err := e.markets.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return e.markets.Market(symbol)
}

func (e *Exchange) optionalMarket(ctx context.Context, symbol string) (*core.Market, error) {
	if err := e.markets.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, nil
	}
	return e.markets.Market(symbol)
}

// currency resolves a currency code, loading currencies on first use.
func (e *Exchange) currency(ctx context.Context, code string) (*core.Currency, error) {
	if c, ok := e.currencies.get(code); ok {
		return c, nil
	}
	if !e.currencies.loaded() {
		if _, err := e.FetchCurrencies(ctx); err != nil {
			return nil, err
		}
		if c, ok := e.currencies.get(code); ok {
			return c, nil
		}
	}
	return nil, core.CurrencyNotFound(exchangeName, code)
}

func (e *Exchange) fetchList(ctx context.Context, transport core.Transport, op core.Operation, params core.Params) ([]any, error) {
	result, err := e.call(ctx, transport, op, params)
	if err != nil {
		return nil, err
	}
	data, ok := result.([]any)
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "unexpected response type for %s: %T", op, result)
	}
	return data, nil
}

func (e *Exchange) fetchRecord(ctx context.Context, transport core.Transport, op core.Operation, params core.Params) (map[string]any, error) {
	result, err := e.call(ctx, transport, op, params)
	if err != nil {
		return nil, err
	}
	raw, ok := result.(map[string]any)
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "unexpected response type for %s: %T", op, result)
	}
	return raw, nil
}

func (e *Exchange) call(ctx context.Context, transport core.Transport, op core.Operation, params core.Params) (any, error) {
	req, err := e.protocol.BuildRequest(ctx, op, params)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.doRequest(ctx, transport, req)
	if err != nil {
		return nil, err
	}

	result, err := e.protocol.ParseResponse(op, resp)
	if err != nil {
		e.logger.Debug().Err(err).Str("op", op.String()).Int("status", resp.StatusCode).Msg("request failed")
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

func (e *Exchange) doRequest(ctx context.Context, transport core.Transport, req *core.Request) (*core.Response, error) {
	if req.RequireAuth {
		var creds core.Credentials
		if e.config.Credentials != nil {
			creds = *e.config.Credentials
		}
		if err := e.protocol.SignRequest(req, creds); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}
	return transport.Do(ctx, req)
}

func withParams(params core.Params, options *exchange.Options) core.Params {
	for k, v := range options.Params {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}
	return params
}

func invalidOrder(message string) error {
	return core.NewExchangeError(exchangeName, core.ErrorTypeInvalidOrder, 0, message).
		WithCode(core.ErrCodeInvalidOrder)
}

func ohlcvTime(c core.OHLCV) time.Time             { return c.Timestamp }
func tradeTime(t core.Trade) time.Time             { return t.Timestamp }
func orderTime(o core.Order) time.Time             { return o.Timestamp }
func transactionTime(t core.Transaction) time.Time { return t.Timestamp }

// currencyCache holds currencies keyed by canonical code.
type currencyCache struct {
	mu     sync.RWMutex
	byCode map[string]core.Currency
}

func newCurrencyCache() *currencyCache {
	return &currencyCache{}
}

func (c *currencyCache) replace(currencies []core.Currency) {
	byCode := make(map[string]core.Currency, len(currencies))
	for _, cur := range currencies {
		byCode[cur.Code] = cur
	}
	c.mu.Lock()
	c.byCode = byCode
	c.mu.Unlock()
}

func (c *currencyCache) get(code string) (*core.Currency, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur, ok := c.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	return &cur, true
}

func (c *currencyCache) loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byCode != nil
}
