package exchange

import (
	"context"

	"github.com/cockroachdb/apd/v3"

	"bitteam/pkg/core"
)

// Exchange defines the unified interface for a connector. Market data calls are
// public; account and order calls require credentials.
type Exchange interface {
	Name() string
	Version() string

	FetchCurrencies(ctx context.Context) ([]core.Currency, error)
	FetchMarkets(ctx context.Context) ([]core.Market, error)
	LoadMarkets(ctx context.Context, reload bool) ([]core.Market, error)
	FetchTicker(ctx context.Context, symbol string) (*core.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string) (*core.OrderBook, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, opts ...Option) ([]core.OHLCV, error)
	FetchTrades(ctx context.Context, symbol string, opts ...Option) ([]core.Trade, error)

	FetchBalance(ctx context.Context) (*core.Balances, error)
	FetchDepositAddress(ctx context.Context, code string) (*core.DepositAddress, error)
	FetchDeposits(ctx context.Context, code string, opts ...Option) ([]core.Transaction, error)
	FetchWithdrawals(ctx context.Context, code string, opts ...Option) ([]core.Transaction, error)

	CreateOrder(ctx context.Context, req *OrderRequest) (*core.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) (*core.Order, error)
	FetchOrder(ctx context.Context, id string) (*core.Order, error)
	FetchOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
	FetchClosedOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
	FetchMyTrades(ctx context.Context, symbol string, opts ...Option) ([]core.Trade, error)

	Close() error
}

// OrderRequest contains the parameters required to place a new order.
// Price is required for limit orders and ignored for market orders.
type OrderRequest struct {
	Symbol        string
	Side          core.OrderSide
	Type          core.OrderType
	Amount        apd.Decimal
	Price         *apd.Decimal
	ClientOrderID string
}
