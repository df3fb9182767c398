package bitteam

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"

	"bitteam/internal/address"
	"bitteam/internal/safe"
	"bitteam/pkg/core"
)

// pairSeparator joins base and quote ids in provider pair names ("eth_usdt").
const pairSeparator = "_"

// Maker and taker fees are integer multiples of 1e-5.
const feeExponent = -5

// MarketResolver resolves a canonical symbol or provider pair id to a market.
type MarketResolver interface {
	Resolve(symbolOrID, sep string) (*core.Market, error)
}

// Normalizer converts provider records into canonical core types.
// Records are loosely typed maps; required fields that are missing or
// unparseable yield MALFORMED_RESPONSE, optional ones become unknown.
type Normalizer struct {
	markets   MarketResolver
	addresses *address.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

type NormalizerOption func(*Normalizer)

// WithNormalizerLogger sets the logger that reports skipped reference records.
func WithNormalizerLogger(l zerolog.Logger) NormalizerOption {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// NewNormalizer creates a Normalizer. markets is used when a record must be tied
// to a market the caller did not supply; it may be nil.
func NewNormalizer(markets MarketResolver, addresses *address.Validator, opts ...NormalizerOption) *Normalizer {
	if addresses == nil {
		addresses = address.New()
	}
	n := &Normalizer{
		markets:   markets,
		addresses: addresses,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeCurrency converts a currency record. symbol and decimals are required;
// a record without txLimits has an unknown fee and unknown withdrawal limits.
func (n *Normalizer) NormalizeCurrency(raw map[string]any) (*core.Currency, error) {
	id := safe.String(raw, "symbol")
	if id == "" {
		return nil, core.MalformedResponse(exchangeName, "currency without symbol")
	}
	precision, ok := safe.Int(raw, "decimals")
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "currency %s without decimals", id)
	}
	active, _ := safe.Bool(raw, "active")

	currency := &core.Currency{
		ID:        id,
		Code:      strings.ToUpper(id),
		Name:      safe.String(raw, "title"),
		Active:    active,
		Precision: int(precision),
		Network:   safe.String(raw, "blockChain"),
		Info:      raw,
	}

	if limits := safe.Map(raw, "txLimits"); limits != nil {
		currency.Fee = safe.Decimal(limits, "withdrawCommissionFixed")
		currency.Limits.Withdraw = core.MinMax{
			Min: safe.Decimal(limits, "minWithdraw"),
			Max: safe.Decimal(limits, "maxWithdraw"),
		}
	}

	return currency, nil
}

// NormalizeCurrencies converts a list of currency records. Records that do not
// normalize are skipped and logged; the call fails only when none of them does.
func (n *Normalizer) NormalizeCurrencies(data []any) ([]core.Currency, error) {
	return normalizeReference(n, "currency", data, n.NormalizeCurrency)
}

// NormalizeMarket converts a pair record. fullName is split on its first space
// into base and quote; name is only used as the id.
func (n *Normalizer) NormalizeMarket(raw map[string]any) (*core.Market, error) {
	id := safe.String(raw, "name")
	if id == "" {
		return nil, core.MalformedResponse(exchangeName, "pair without name")
	}

	fullName := safe.String(raw, "fullName")
	base, quote, _ := strings.Cut(strings.TrimSpace(fullName), " ")
	base, quote = strings.ToUpper(strings.TrimSpace(base)), strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return nil, core.MalformedResponse(exchangeName, "pair %s has fullName %q", id, fullName)
	}

	baseID, quoteID, ok := strings.Cut(id, pairSeparator)
	if !ok {
		baseID, quoteID = strings.ToLower(base), strings.ToLower(quote)
	}

	basePrecision, ok := safe.Int(raw, "baseStep")
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "pair %s without baseStep", id)
	}
	quotePrecision, ok := safe.Int(raw, "quoteStep")
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "pair %s without quoteStep", id)
	}

	active, _ := safe.Bool(raw, "active")
	numericID, _ := safe.Int(raw, "id")

	return &core.Market{
		ID:        id,
		NumericID: numericID,
		Symbol:    base + "/" + quote,
		Base:      base,
		Quote:     quote,
		BaseID:    baseID,
		QuoteID:   quoteID,
		Active:    active,
		Taker:     feeRate(safe.Decimal(raw, "takerFee")),
		Maker:     feeRate(safe.Decimal(raw, "makerFee")),
		Precision: core.MarketPrecision{
			Base:  int(basePrecision),
			Quote: int(quotePrecision),
		},
		Limits: core.MarketLimits{
			Price: core.MinMax{
				Min: safe.Decimal(raw, "settings", "price_min"),
				Max: safe.Decimal(raw, "settings", "price_max"),
			},
			Cost: core.MinMax{
				Min: safe.Decimal(raw, "settings", "limit_usd"),
			},
		},
		Info: raw,
	}, nil
}

// NormalizeMarkets converts a list of pair records. Like NormalizeCurrencies it
// skips and logs records that do not normalize, so one odd pair cannot keep the
// market cache cold.
func (n *Normalizer) NormalizeMarkets(data []any) ([]core.Market, error) {
	return normalizeReference(n, "pair", data, n.NormalizeMarket)
}

// normalizeReference converts a reference data list record by record.
func normalizeReference[T any](n *Normalizer, kind string, data []any, normalize func(map[string]any) (*T, error)) ([]T, error) {
	out := make([]T, 0, len(data))
	var firstErr error
	for i, item := range data {
		var err error
		if raw, ok := item.(map[string]any); !ok {
			err = core.MalformedResponse(exchangeName, "%s %d is %T", kind, i, item)
		} else if v, nerr := normalize(raw); nerr != nil {
			err = nerr
		} else {
			out = append(out, *v)
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		n.logger.Warn().Err(err).Str("kind", kind).Int("index", i).Msg("skipping record")
	}
	if len(out) == 0 && firstErr != nil {
		return nil, fmt.Errorf("normalize %s: %w", kind, firstErr)
	}
	return out, nil
}

// NormalizeTicker converts a pair detail record into a ticker. The provider has no
// OHLC fields, so Open, High, Low and Close stay unknown; bid and ask come from
// the best order book levels.
func (n *Normalizer) NormalizeTicker(raw map[string]any, market *core.Market) (*core.Ticker, error) {
	book, err := n.NormalizeOrderBook(raw, market)
	if err != nil {
		return nil, err
	}

	ticker := &core.Ticker{
		Symbol:     market.Symbol,
		Timestamp:  book.Timestamp,
		Last:       safe.Decimal(raw, "lastPrice"),
		Percentage: safe.Decimal(raw, "change24"),
		BaseVolume: safe.Decimal(raw, "volume24"),
		Info:       raw,
	}
	if len(book.Bids) > 0 {
		ticker.Bid = decimalPtr(&book.Bids[0].Price)
		ticker.BidVolume = decimalPtr(&book.Bids[0].Amount)
	}
	if len(book.Asks) > 0 {
		ticker.Ask = decimalPtr(&book.Asks[0].Price)
		ticker.AskVolume = decimalPtr(&book.Asks[0].Amount)
	}
	return ticker, nil
}

// NormalizeOrderBook converts the orderbook of a pair detail record. Levels keep
// the provider's ordering.
func (n *Normalizer) NormalizeOrderBook(raw map[string]any, market *core.Market) (*core.OrderBook, error) {
	if market == nil {
		return nil, fmt.Errorf("normalize order book: market is required")
	}
	bids, err := n.normalizeOrderBookLevels(safe.Slice(raw, "orderbook", "bids"))
	if err != nil {
		return nil, fmt.Errorf("normalize bids: %w", err)
	}
	asks, err := n.normalizeOrderBookLevels(safe.Slice(raw, "orderbook", "asks"))
	if err != nil {
		return nil, fmt.Errorf("normalize asks: %w", err)
	}
	return &core.OrderBook{
		Symbol:    market.Symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: n.now().UTC(),
	}, nil
}

// Levels are [price, amount] pairs or {price, quantity} objects.
func (n *Normalizer) normalizeOrderBookLevels(levels []any) ([]core.OrderBookLevel, error) {
	result := make([]core.OrderBookLevel, 0, len(levels))

	for i, level := range levels {
		var price, amount *apd.Decimal
		switch l := level.(type) {
		case []any:
			if len(l) < 2 {
				return nil, core.MalformedResponse(exchangeName, "order book level %d has %d fields", i, len(l))
			}
			price, amount = safe.AsDecimal(l[0]), safe.AsDecimal(l[1])
		case map[string]any:
			price = safe.Decimal(l, "price")
			amount = safe.Decimal(l, "quantity")
			if amount == nil {
				amount = safe.Decimal(l, "amount")
			}
		}
		if price == nil || amount == nil {
			return nil, core.MalformedResponse(exchangeName, "order book level %d is not a price and amount", i)
		}
		result = append(result, core.OrderBookLevel{Price: *price, Amount: *amount})
	}

	return result, nil
}

// NormalizeOHLCV converts candles of the form {t (seconds), o, h, l, c, v}.
func (n *Normalizer) NormalizeOHLCV(data []any) ([]core.OHLCV, error) {
	candles := make([]core.OHLCV, 0, len(data))
	for i, item := range data {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, core.MalformedResponse(exchangeName, "candle %d is %T", i, item)
		}
		ts, ok := safe.Int(raw, "t")
		if !ok {
			return nil, core.MalformedResponse(exchangeName, "candle %d without time", i)
		}

		candle := core.OHLCV{Timestamp: time.Unix(ts, 0).UTC()}
		fields := []struct {
			key  string
			dest *apd.Decimal
		}{
			{"o", &candle.Open},
			{"h", &candle.High},
			{"l", &candle.Low},
			{"c", &candle.Close},
			{"v", &candle.Volume},
		}
		for _, f := range fields {
			d := safe.Decimal(raw, f.key)
			if d == nil {
				return nil, core.MalformedResponse(exchangeName, "candle %d without %s", i, f.key)
			}
			f.dest.Set(d)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// NormalizeTrade converts a trade record. When market is nil the record's pair
// is resolved through the market resolver. Cost is always price * amount.
func (n *Normalizer) NormalizeTrade(raw map[string]any, market *core.Market) (*core.Trade, error) {
	id := safe.FirstString(raw, "id", "tradeId")
	if id == "" {
		return nil, core.MalformedResponse(exchangeName, "trade without id")
	}

	market, err := n.marketFor(raw, market)
	if err != nil {
		return nil, err
	}

	price := safe.Decimal(raw, "price")
	amount := safe.Decimal(raw, "quantity")
	if price == nil || amount == nil {
		return nil, core.MalformedResponse(exchangeName, "trade %s without price or quantity", id)
	}

	isBuyerMaker, _ := safe.Bool(raw, "isBuyerMaker")
	side, ok := core.ParseOrderSide(safe.String(raw, "side"))
	if !ok {
		side = parseSideFromBuyerMaker(isBuyerMaker)
	}
	takerOrMaker := core.Taker
	if isBuyerMaker {
		takerOrMaker = core.Maker
	}

	trade := &core.Trade{
		ID:           id,
		OrderID:      safe.String(raw, "orderId"),
		Timestamp:    timestampOf(raw),
		Symbol:       market.Symbol,
		Side:         side,
		TakerOrMaker: takerOrMaker,
		Price:        *price,
		Amount:       *amount,
		Fee:          feeOf(raw, "fee"),
		Info:         raw,
	}
	if _, err := apd.BaseContext.Mul(&trade.Cost, &trade.Price, &trade.Amount); err != nil {
		return nil, fmt.Errorf("calculate cost: %w", err)
	}

	return trade, nil
}

// NormalizeTrades converts a list of trade records.
func (n *Normalizer) NormalizeTrades(data []any, market *core.Market) ([]core.Trade, error) {
	trades := make([]core.Trade, 0, len(data))
	for i, item := range data {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, core.MalformedResponse(exchangeName, "trade %d is %T", i, item)
		}
		trade, err := n.NormalizeTrade(raw, market)
		if err != nil {
			return nil, fmt.Errorf("normalize trade: %w", err)
		}
		trades = append(trades, *trade)
	}
	return trades, nil
}

// NormalizeOrder converts an order record. The status is always mapped, never
// copied.
func (n *Normalizer) NormalizeOrder(raw map[string]any, market *core.Market) (*core.Order, error) {
	id := safe.String(raw, "id")
	if id == "" {
		return nil, core.MalformedResponse(exchangeName, "order without id")
	}

	market, err := n.marketFor(raw, market)
	if err != nil {
		return nil, err
	}

	amount := safe.Decimal(raw, "quantity")
	if amount == nil {
		return nil, core.MalformedResponse(exchangeName, "order %s without quantity", id)
	}
	side, ok := core.ParseOrderSide(safe.String(raw, "side"))
	if !ok {
		return nil, core.MalformedResponse(exchangeName, "order %s has side %q", id, safe.String(raw, "side"))
	}

	order := &core.Order{
		ID:            id,
		ClientOrderID: safe.String(raw, "clientOrderId"),
		Timestamp:     timestampOf(raw),
		Status:        parseOrderStatus(safe.String(raw, "status")),
		Symbol:        market.Symbol,
		Type:          parseOrderType(safe.String(raw, "type")),
		Side:          side,
		Price:         nonZero(safe.Decimal(raw, "price")),
		Amount:        *amount,
		Filled:        safe.Decimal(raw, "executed"),
		Average:       nonZero(safe.Decimal(raw, "executedPrice")),
		Fee:           feeOf(raw, "fee"),
		Info:          raw,
	}

	if order.Filled != nil {
		var remaining apd.Decimal
		if _, err := apd.BaseContext.Sub(&remaining, &order.Amount, order.Filled); err != nil {
			return nil, fmt.Errorf("calculate remaining: %w", err)
		}
		order.Remaining = &remaining

		if order.Average != nil {
			var cost apd.Decimal
			if _, err := apd.BaseContext.Mul(&cost, order.Filled, order.Average); err != nil {
				return nil, fmt.Errorf("calculate cost: %w", err)
			}
			order.Cost = &cost
		}
	}

	return order, nil
}

// NormalizeOrders converts a list of order records.
func (n *Normalizer) NormalizeOrders(data []any, market *core.Market) ([]core.Order, error) {
	orders := make([]core.Order, 0, len(data))
	for i, item := range data {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, core.MalformedResponse(exchangeName, "order %d is %T", i, item)
		}
		order, err := n.NormalizeOrder(raw, market)
		if err != nil {
			return nil, fmt.Errorf("normalize order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// NormalizeBalances converts balance records of the form {symbol, available,
// locked}. Missing amounts count as zero and Total is always Free + Used.
func (n *Normalizer) NormalizeBalances(data []any) (*core.Balances, error) {
	balances := &core.Balances{
		Currencies: make(map[string]core.Balance, len(data)),
		Free:       make(map[string]apd.Decimal, len(data)),
		Used:       make(map[string]apd.Decimal, len(data)),
		Total:      make(map[string]apd.Decimal, len(data)),
		Timestamp:  n.now().UTC(),
		Info:       core.Info{"balances": data},
	}

	for i, item := range data {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, core.MalformedResponse(exchangeName, "balance %d is %T", i, item)
		}
		code := strings.ToUpper(safe.String(raw, "symbol"))
		if code == "" {
			return nil, core.MalformedResponse(exchangeName, "balance %d without symbol", i)
		}

		var b core.Balance
		if free := safe.Decimal(raw, "available"); free != nil {
			b.Free.Set(free)
		}
		if used := safe.Decimal(raw, "locked"); used != nil {
			b.Used.Set(used)
		}
		if _, err := apd.BaseContext.Add(&b.Total, &b.Free, &b.Used); err != nil {
			return nil, fmt.Errorf("calculate total for %s: %w", code, err)
		}

		balances.Currencies[code] = b
		balances.Free[code] = b.Free
		balances.Used[code] = b.Used
		balances.Total[code] = b.Total
	}

	return balances, nil
}

// NormalizeTransaction converts a deposit or withdrawal record. kind is used when
// the record does not state its own type.
func (n *Normalizer) NormalizeTransaction(raw map[string]any, kind core.TransactionType) (*core.Transaction, error) {
	id := safe.String(raw, "id")
	if id == "" {
		return nil, core.MalformedResponse(exchangeName, "transaction without id")
	}
	amount := safe.Decimal(raw, "amount")
	if amount == nil {
		return nil, core.MalformedResponse(exchangeName, "transaction %s without amount", id)
	}

	code := safe.String(raw, "symbol")
	if code == "" {
		code = safe.String(raw, "currency", "symbol")
	}
	code = strings.ToUpper(code)

	tx := &core.Transaction{
		ID:          id,
		TxID:        safe.String(raw, "txId"),
		Timestamp:   timestampOf(raw),
		AddressFrom: safe.String(raw, "sender"),
		AddressTo:   safe.String(raw, "recipient"),
		Type:        parseTransactionType(safe.String(raw, "type"), kind),
		Amount:      *amount,
		Currency:    code,
		Status:      parseTransactionStatus(safe.Value(raw, "status")),
		Info:        raw,
	}

	if fee := feeOf(raw, "fee"); fee != nil {
		tx.Fee = fee
	} else if cost := safe.Decimal(raw, "fee"); cost != nil {
		tx.Fee = &core.Fee{Currency: code, Cost: *cost}
	}

	return tx, nil
}

// NormalizeTransactions converts a list of transaction records.
func (n *Normalizer) NormalizeTransactions(data []any, kind core.TransactionType) ([]core.Transaction, error) {
	txs := make([]core.Transaction, 0, len(data))
	for i, item := range data {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, core.MalformedResponse(exchangeName, "transaction %d is %T", i, item)
		}
		tx, err := n.NormalizeTransaction(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("normalize transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// NormalizeDepositAddress converts a deposit address record and validates the
// address for its network. An address that fails validation is never returned.
func (n *Normalizer) NormalizeDepositAddress(raw map[string]any, currency *core.Currency) (*core.DepositAddress, error) {
	addr := safe.String(raw, "address")
	if addr == "" {
		return nil, core.MalformedResponse(exchangeName, "deposit address without address")
	}

	network := safe.String(raw, "network")
	if network == "" {
		network = currency.Network
	}
	if network == "" {
		network = currency.Code
	}

	if err := n.addresses.Validate(network, addr); err != nil {
		return nil, core.InvalidAddress(exchangeName, addr, network)
	}

	return &core.DepositAddress{
		Currency: currency.Code,
		Address:  addr,
		Tag:      safe.String(raw, "tag"),
		Network:  network,
		Info:     raw,
	}, nil
}

func (n *Normalizer) marketFor(raw map[string]any, market *core.Market) (*core.Market, error) {
	if market != nil {
		return market, nil
	}
	pair := safe.String(raw, "pair")
	if pair == "" {
		return nil, core.MalformedResponse(exchangeName, "record without pair")
	}
	if n.markets == nil {
		return nil, core.MarketNotFound(exchangeName, pair)
	}
	return n.markets.Resolve(pair, pairSeparator)
}

// timestampOf reads timestamp (ms), falling back to createdAt.
func timestampOf(raw map[string]any) time.Time {
	if ts := safe.Timestamp(raw, "timestamp"); !ts.IsZero() {
		return ts
	}
	return safe.Timestamp(raw, "createdAt")
}

// feeOf reads a {amount, symbol} fee object, or nil when there is none.
func feeOf(raw map[string]any, key string) *core.Fee {
	obj := safe.Map(raw, key)
	if obj == nil {
		return nil
	}
	cost := safe.Decimal(obj, "amount")
	if cost == nil {
		return nil
	}
	return &core.Fee{
		Currency: strings.ToUpper(safe.String(obj, "symbol")),
		Cost:     *cost,
	}
}

func feeRate(units *apd.Decimal) *apd.Decimal {
	if units == nil {
		return nil
	}
	rate := new(apd.Decimal).Set(units)
	rate.Exponent += feeExponent
	return rate
}

func nonZero(d *apd.Decimal) *apd.Decimal {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}

func decimalPtr(d *apd.Decimal) *apd.Decimal {
	return new(apd.Decimal).Set(d)
}
