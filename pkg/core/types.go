package core

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Info holds a raw provider record exactly as it was received.
type Info map[string]any

// OrderSide represents the direction of an order or trade (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase the base asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell the base asset.
	SideSell
)

// String returns the canonical representation of the order side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"BUY"`, `"buy"`:
		*s = SideBuy
	case `"SELL"`, `"sell"`:
		*s = SideSell
	}
	return nil
}

// ParseOrderSide converts a provider side string into an OrderSide.
// The second return value is false when the string is not a known side.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch s {
	case "buy", "BUY", "Buy":
		return SideBuy, true
	case "sell", "SELL", "Sell":
		return SideSell, true
	default:
		return SideBuy, false
	}
}

// OrderType represents how an order is executed.
type OrderType int

// Order type constants.
const (
	// TypeMarket executes immediately at the best available price.
	TypeMarket OrderType = iota
	// TypeLimit executes at a specified price or better.
	TypeLimit
)

// String returns the canonical representation of the order type.
func (t OrderType) String() string {
	return [...]string{"market", "limit"}[t]
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"MARKET"`, `"market"`:
		*t = TypeMarket
	case `"LIMIT"`, `"limit"`:
		*t = TypeLimit
	}
	return nil
}

// OrderStatus is the canonical lifecycle state of an order.
type OrderStatus int

// Order status constants.
const (
	// StatusOpen indicates the order is resting on the book or executing.
	StatusOpen OrderStatus = iota
	// StatusCanceled indicates the order was canceled.
	StatusCanceled
	// StatusClosed indicates the order reached a final provider state.
	StatusClosed
	// StatusExpired indicates any other terminal provider state.
	StatusExpired
)

// String returns the canonical representation of the order status.
func (s OrderStatus) String() string {
	return [...]string{"open", "canceled", "closed", "expired"}[s]
}

// IsTerminal returns true if no further changes to the order are possible.
func (s OrderStatus) IsTerminal() bool {
	return s != StatusOpen
}

// MarshalJSON implements json.Marshaler for OrderStatus.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderStatus.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"open"`, `"OPEN"`:
		*s = StatusOpen
	case `"canceled"`, `"CANCELED"`:
		*s = StatusCanceled
	case `"closed"`, `"CLOSED"`:
		*s = StatusClosed
	case `"expired"`, `"EXPIRED"`:
		*s = StatusExpired
	}
	return nil
}

// TakerOrMaker tells whether a trade removed or added liquidity.
type TakerOrMaker int

const (
	Taker TakerOrMaker = iota
	Maker
)

func (t TakerOrMaker) String() string {
	return [...]string{"taker", "maker"}[t]
}

// MarshalJSON implements json.Marshaler for TakerOrMaker.
func (t TakerOrMaker) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// TransactionType is the direction of a funding transaction.
type TransactionType int

const (
	TransactionDeposit TransactionType = iota
	TransactionWithdraw
)

func (t TransactionType) String() string {
	return [...]string{"deposit", "withdraw"}[t]
}

// MarshalJSON implements json.Marshaler for TransactionType.
func (t TransactionType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// TransactionStatus is the canonical state of a deposit or withdrawal.
// The zero value is TransactionStatusUnknown.
type TransactionStatus int

// Transaction status constants.
const (
	// TransactionStatusUnknown is reported for provider codes with no canonical meaning.
	TransactionStatusUnknown TransactionStatus = iota
	// TransactionStatusOK indicates the transaction completed.
	TransactionStatusOK
	// TransactionStatusFailed indicates the transaction failed.
	TransactionStatusFailed
	// TransactionStatusPending indicates the transaction is still in progress.
	TransactionStatusPending
)

// String returns the canonical representation of the transaction status.
func (s TransactionStatus) String() string {
	return [...]string{"unknown", "ok", "failed", "pending"}[s]
}

// MarshalJSON implements json.Marshaler for TransactionStatus.
// Unknown statuses are encoded as null.
func (s TransactionStatus) MarshalJSON() ([]byte, error) {
	if s == TransactionStatusUnknown {
		return []byte("null"), nil
	}
	return []byte(`"` + s.String() + `"`), nil
}

// Clone returns a deep copy of i. Nested objects and arrays are copied; scalar
// leaves are immutable and shared.
func (i Info) Clone() Info {
	if i == nil {
		return nil
	}
	return cloneValue(map[string]any(i)).(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Info:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneDecimal(d *apd.Decimal) *apd.Decimal {
	if d == nil {
		return nil
	}
	return new(apd.Decimal).Set(d)
}

// MinMax is an inclusive range where either bound may be unknown (nil).
type MinMax struct {
	Min *apd.Decimal `json:"min"`
	Max *apd.Decimal `json:"max"`
}

// Clone returns a copy of r that shares no decimals with it.
func (r MinMax) Clone() MinMax {
	return MinMax{Min: cloneDecimal(r.Min), Max: cloneDecimal(r.Max)}
}

// Fee is a charged fee in a given currency.
type Fee struct {
	Currency string      `json:"currency"`
	Cost     apd.Decimal `json:"cost"`
}

// CurrencyLimits groups the limits that apply to a currency.
type CurrencyLimits struct {
	Withdraw MinMax `json:"withdraw"`
}

// Currency describes an asset listed on the exchange.
type Currency struct {
	// ID is the provider currency symbol (e.g., "btc").
	ID string `json:"id"`
	// Code is the canonical uppercase ticker (e.g., "BTC").
	Code string `json:"code"`
	// Name is the human-readable currency name.
	Name string `json:"name"`
	// Active reports whether the currency is enabled on the exchange.
	Active bool `json:"active"`
	// Fee is the fixed withdrawal fee, nil when unknown.
	Fee *apd.Decimal `json:"fee"`
	// Precision is the number of decimal places the currency supports.
	Precision int `json:"precision"`
	// Network is the blockchain the currency is transferred on.
	Network string         `json:"network,omitempty"`
	Limits  CurrencyLimits `json:"limits"`
	Info    Info           `json:"info"`
}

// MarketPrecision holds the number of decimal places for base and quote amounts.
type MarketPrecision struct {
	Base  int `json:"base"`
	Quote int `json:"quote"`
}

// MarketLimits groups the trading limits of a market.
type MarketLimits struct {
	Price MinMax `json:"price"`
	Cost  MinMax `json:"cost"`
}

// Market describes a tradable pair.
// Symbol is always Base + "/" + Quote.
type Market struct {
	// ID is the provider pair name (e.g., "eth_usdt").
	ID string `json:"id"`
	// NumericID is the provider's integer pair identifier, zero when unknown.
	NumericID int64 `json:"numeric_id,omitempty"`
	// Symbol is the canonical pair symbol (e.g., "ETH/USDT").
	Symbol    string          `json:"symbol"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	BaseID    string          `json:"base_id"`
	QuoteID   string          `json:"quote_id"`
	Active    bool            `json:"active"`
	Taker     *apd.Decimal    `json:"taker"`
	Maker     *apd.Decimal    `json:"maker"`
	Precision MarketPrecision `json:"precision"`
	Limits    MarketLimits    `json:"limits"`
	Info      Info            `json:"info"`
}

// Clone returns a deep copy of m, including its fees, limits and Info.
func (m *Market) Clone() Market {
	cp := *m
	cp.Taker = cloneDecimal(m.Taker)
	cp.Maker = cloneDecimal(m.Maker)
	cp.Limits = MarketLimits{
		Price: m.Limits.Price.Clone(),
		Cost:  m.Limits.Cost.Clone(),
	}
	cp.Info = m.Info.Clone()
	return cp
}

// Ticker is a point-in-time market snapshot.
// Fields the provider does not expose are nil rather than zero.
type Ticker struct {
	Symbol      string       `json:"symbol"`
	Timestamp   time.Time    `json:"timestamp"`
	Last        *apd.Decimal `json:"last"`
	Bid         *apd.Decimal `json:"bid"`
	BidVolume   *apd.Decimal `json:"bid_volume"`
	Ask         *apd.Decimal `json:"ask"`
	AskVolume   *apd.Decimal `json:"ask_volume"`
	High        *apd.Decimal `json:"high"`
	Low         *apd.Decimal `json:"low"`
	Open        *apd.Decimal `json:"open"`
	Close       *apd.Decimal `json:"close"`
	Change      *apd.Decimal `json:"change"`
	Percentage  *apd.Decimal `json:"percentage"`
	BaseVolume  *apd.Decimal `json:"base_volume"`
	QuoteVolume *apd.Decimal `json:"quote_volume"`
	Info        Info         `json:"info"`
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	Price  apd.Decimal `json:"price"`
	Amount apd.Decimal `json:"amount"`
}

// OrderBook represents the current state of the order book for a market.
// Levels keep the provider's price-priority ordering: best price first.
type OrderBook struct {
	Symbol    string           `json:"symbol"`
	Bids      []OrderBookLevel `json:"bids"`
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// OHLCV is a single candlestick.
type OHLCV struct {
	Timestamp time.Time   `json:"timestamp"`
	Open      apd.Decimal `json:"open"`
	High      apd.Decimal `json:"high"`
	Low       apd.Decimal `json:"low"`
	Close     apd.Decimal `json:"close"`
	Volume    apd.Decimal `json:"volume"`
}

// Trade represents a single execution.
// Cost is always Price * Amount computed locally.
type Trade struct {
	ID           string       `json:"id"`
	OrderID      string       `json:"order_id,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Symbol       string       `json:"symbol"`
	Side         OrderSide    `json:"side"`
	TakerOrMaker TakerOrMaker `json:"taker_or_maker"`
	Price        apd.Decimal  `json:"price"`
	Amount       apd.Decimal  `json:"amount"`
	Cost         apd.Decimal  `json:"cost"`
	Fee          *Fee         `json:"fee"`
	Info         Info         `json:"info"`
}

// Order represents an exchange order.
type Order struct {
	ID            string      `json:"id"`
	ClientOrderID string      `json:"client_order_id"`
	Timestamp     time.Time   `json:"timestamp"`
	Status        OrderStatus `json:"status"`
	Symbol        string      `json:"symbol"`
	Type          OrderType   `json:"type"`
	Side          OrderSide   `json:"side"`
	// Price is nil for market orders.
	Price     *apd.Decimal `json:"price"`
	Amount    apd.Decimal  `json:"amount"`
	Filled    *apd.Decimal `json:"filled"`
	Remaining *apd.Decimal `json:"remaining"`
	Average   *apd.Decimal `json:"average"`
	Cost      *apd.Decimal `json:"cost"`
	Fee       *Fee         `json:"fee"`
	Info      Info         `json:"info"`
}

// Balance is the holding of a single currency. Total is Free + Used.
type Balance struct {
	Free  apd.Decimal `json:"free"`
	Used  apd.Decimal `json:"used"`
	Total apd.Decimal `json:"total"`
}

// Balances is the account balance across all currencies, keyed by canonical code.
type Balances struct {
	Currencies map[string]Balance     `json:"currencies"`
	Free       map[string]apd.Decimal `json:"free"`
	Used       map[string]apd.Decimal `json:"used"`
	Total      map[string]apd.Decimal `json:"total"`
	Timestamp  time.Time              `json:"timestamp"`
	Info       Info                   `json:"info"`
}

// Transaction is a deposit or withdrawal.
type Transaction struct {
	ID          string            `json:"id"`
	TxID        string            `json:"txid,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	AddressFrom string            `json:"address_from"`
	AddressTo   string            `json:"address_to"`
	Type        TransactionType   `json:"type"`
	Amount      apd.Decimal       `json:"amount"`
	Currency    string            `json:"currency"`
	Status      TransactionStatus `json:"status"`
	Fee         *Fee              `json:"fee"`
	Info        Info              `json:"info"`
}

// DepositAddress is a validated address for funding an account.
type DepositAddress struct {
	Currency string `json:"currency"`
	Address  string `json:"address"`
	// Tag is the memo or destination tag, empty when not required.
	Tag     string `json:"tag,omitempty"`
	Network string `json:"network,omitempty"`
	Info    Info   `json:"info"`
}
