package core

// Operation represents a type of action that can be performed on an exchange.
type Operation int

// Operation constants define all supported exchange operations.
const (
	// OpFetchCurrencies lists the currencies listed on the exchange.
	OpFetchCurrencies Operation = iota
	// OpFetchMarkets lists the tradable pairs.
	OpFetchMarkets
	// OpFetchTicker retrieves the pair detail used for tickers.
	OpFetchTicker
	// OpFetchOrderBook retrieves the pair detail used for order books.
	OpFetchOrderBook
	// OpFetchOHLCV retrieves candlestick data.
	OpFetchOHLCV
	// OpFetchTrades retrieves recent public trades for a pair.
	OpFetchTrades
	// OpFetchOrder retrieves a single order of the account.
	OpFetchOrder
	// OpFetchOrders retrieves orders of the account, filtered by state.
	OpFetchOrders
	// OpFetchMyTrades retrieves executions of the account.
	OpFetchMyTrades
	// OpFetchDepositAddress retrieves the deposit address for a currency.
	OpFetchDepositAddress
	// OpFetchTransactions retrieves deposits or withdrawals of the account.
	OpFetchTransactions
	// OpFetchBalance retrieves account balances.
	OpFetchBalance
	// OpCreateOrder submits a new order.
	OpCreateOrder
	// OpCancelOrder cancels an existing order.
	OpCancelOrder
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return [...]string{
		"FETCH_CURRENCIES",
		"FETCH_MARKETS",
		"FETCH_TICKER",
		"FETCH_ORDER_BOOK",
		"FETCH_OHLCV",
		"FETCH_TRADES",
		"FETCH_ORDER",
		"FETCH_ORDERS",
		"FETCH_MY_TRADES",
		"FETCH_DEPOSIT_ADDRESS",
		"FETCH_TRANSACTIONS",
		"FETCH_BALANCE",
		"CREATE_ORDER",
		"CANCEL_ORDER",
	}[o]
}

// IsPrivate reports whether the operation requires signed credentials.
func (o Operation) IsPrivate() bool {
	return o >= OpFetchOrder
}
