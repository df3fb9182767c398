package bitteam

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitteam/pkg/core"
	"bitteam/pkg/exchange"
	"bitteam/pkg/market"
)

const (
	currenciesBody = `{"ok":true,"result":{"count":2,"currencies":[
		{"symbol":"btc","title":"Bitcoin","active":true,"decimals":8,"blockChain":"Bitcoin",
		 "txLimits":{"minWithdraw":"0.0005","maxWithdraw":"10","withdrawCommissionFixed":"0.0002"}},
		{"symbol":"eth","title":"Ethereum","active":true,"decimals":18,"blockChain":"Ethereum"}
	]}}`
	pairsBody = `{"ok":true,"result":{"count":1,"pairs":[
		{"id":24,"name":"eth_usdt","fullName":"ETH USDT","baseStep":8,"quoteStep":6,"active":true,
		 "makerFee":200,"takerFee":200,"settings":{"price_min":"0.01","price_max":"100000","limit_usd":"5"}}
	]}}`
)

// fakeBitTeam serves canned responses and verifies signatures on private routes.
type fakeBitTeam struct {
	t       *testing.T
	mu      sync.Mutex
	routes  map[string]string
	hits    map[string]*atomic.Int64
	bodies  map[string]string
	queries map[string]string
	delay   time.Duration
}

func newFakeBitTeam(t *testing.T) *fakeBitTeam {
	f := &fakeBitTeam{
		t: t,
		routes: map[string]string{
			"/trade/api/currencies":    currenciesBody,
			"/trade/api/pairs":         pairsBody,
			"/trade/api/pair/eth_usdt": `{"ok":true,"result":{"pair":` + pairDetail + `}}`,
		},
		hits:    make(map[string]*atomic.Int64),
		bodies:  make(map[string]string),
		queries: make(map[string]string),
	}
	return f
}

func (f *fakeBitTeam) route(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = body
}

func (f *fakeBitTeam) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *fakeBitTeam) hitCount(path string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.hits[path]; ok {
		return c.Load()
	}
	return 0
}

func (f *fakeBitTeam) lastBody(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeBitTeam) lastQuery(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func (f *fakeBitTeam) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	counter, ok := f.hits[r.URL.Path]
	if !ok {
		counter = &atomic.Int64{}
		f.hits[r.URL.Path] = counter
	}
	f.bodies[r.URL.Path] = string(body)
	f.queries[r.URL.Path] = r.URL.RawQuery
	resp, found := f.routes[r.URL.Path]
	delay := f.delay
	f.mu.Unlock()
	counter.Add(1)

	if key := r.Header.Get(HeaderAPIKey); key != "" {
		nonce := r.Header.Get(HeaderNonce)
		want := expectedSignature(nonce+r.URL.RequestURI()+string(body), testCreds.SecretKey)
		if r.Header.Get(HeaderSignature) != want {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"message":"Invalid signature"}`))
			return
		}
	}

	if delay > 0 {
		time.Sleep(delay)
	}

	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"message":"route not found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func newTestExchange(t *testing.T, creds *core.Credentials) (*Exchange, *fakeBitTeam) {
	t.Helper()
	fake := newFakeBitTeam(t)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	config := core.DefaultConfig("bitteam").
		WithBaseURL(srv.URL).
		WithTimeout(5 * time.Second).
		WithCredentials(creds)

	ex, err := New(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ex.Close() })

	ex.newClientOrderID = func() string { return "client-1" }
	return ex, fake
}

func TestNew(t *testing.T) {
	ex, err := New(core.DefaultConfig("bitteam"))
	require.NoError(t, err)
	defer ex.Close()

	assert.Equal(t, "bitteam", ex.Name())
	assert.Equal(t, "1", ex.Version())
	assert.Equal(t, market.StateCold, ex.Markets().State())

	_, err = New(core.DefaultConfig(""))
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	c := exchange.NewContainer()
	require.NoError(t, Register(c, core.DefaultConfig("bitteam")))
	defer c.Close()

	ex, err := c.Get("bitteam")
	require.NoError(t, err)
	assert.Equal(t, "bitteam", ex.Name())
}

func TestHosts(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		history     string
		wantTrade   string
		wantHistory string
	}{
		{"production", "", "", ProductionURL, HistoryURL},
		{"base overrides both", "http://local", "", "http://local", "http://local"},
		{"history only", "", "http://candles", ProductionURL, "http://candles"},
		{"both", "http://local", "http://candles", "http://local", "http://candles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := core.DefaultConfig("bitteam").WithBaseURL(tt.base).WithHistoryURL(tt.history)
			trade, history := hosts(config)
			assert.Equal(t, tt.wantTrade, trade)
			assert.Equal(t, tt.wantHistory, history)
		})
	}
}

func TestExchange_FetchCurrencies(t *testing.T) {
	ex, _ := newTestExchange(t, nil)

	currencies, err := ex.FetchCurrencies(context.Background())
	require.NoError(t, err)
	require.Len(t, currencies, 2)

	assert.Equal(t, "BTC", currencies[0].Code)
	assert.Equal(t, 8, currencies[0].Precision)
	decimalEqual(t, "0.0005", currencies[0].Limits.Withdraw.Min)
	assert.Nil(t, currencies[1].Fee)
}

func TestExchange_LoadMarkets(t *testing.T) {
	ex, fake := newTestExchange(t, nil)
	fake.setDelay(50 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ex.LoadMarkets(context.Background(), false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), fake.hitCount("/trade/api/pairs"))
	assert.Equal(t, market.StateWarm, ex.Markets().State())

	markets, err := ex.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "ETH/USDT", markets[0].Symbol)
	assert.Equal(t, int64(1), fake.hitCount("/trade/api/pairs"))

	_, err = ex.LoadMarkets(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fake.hitCount("/trade/api/pairs"))
}

func TestExchange_LoadMarkets_FailureKeepsCacheCold(t *testing.T) {
	ex, fake := newTestExchange(t, nil)
	fake.route("/trade/api/pairs", `{"ok":true,"result":{"pairs":[{"name":"broken"}]}}`)

	_, err := ex.LoadMarkets(context.Background(), false)
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeMalformedResponse))
	assert.Equal(t, market.StateCold, ex.Markets().State())
	assert.Zero(t, ex.Markets().Len())
}

func TestExchange_LoadMarkets_SkipsBadPair(t *testing.T) {
	ex, fake := newTestExchange(t, nil)
	fake.route("/trade/api/pairs", `{"ok":true,"result":{"pairs":[
		{"id":24,"name":"eth_usdt","fullName":"ETH USDT","baseStep":8,"quoteStep":6,"active":true},
		{"id":25,"name":"x_usdt","fullName":"X Token USDT","baseStep":2,"quoteStep":6},
		{"id":26,"name":"broken","fullName":"BROKEN"}
	]}}`)

	markets, err := ex.LoadMarkets(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, markets, 2)
	assert.Equal(t, market.StateWarm, ex.Markets().State())

	ticker, err := ex.FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", ticker.Symbol)
}

func TestExchange_FetchCurrencies_SkipsBadRecord(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/currencies", `{"ok":true,"result":{"currencies":[
		{"symbol":"odd","title":"No decimals"},
		{"symbol":"eth","title":"Ethereum","active":true,"decimals":18,"blockChain":"Ethereum"}
	]}}`)
	fake.route("/trade/api/ccxt/address/eth", `{"ok":true,"result":{
		"address":"0x52908400098527886E0F7030069857D2E4169EE7"
	}}`)

	currencies, err := ex.FetchCurrencies(context.Background())
	require.NoError(t, err)
	require.Len(t, currencies, 1)

	addr, err := ex.FetchDepositAddress(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "Ethereum", addr.Network)
}

func TestExchange_FetchTicker(t *testing.T) {
	ex, _ := newTestExchange(t, nil)

	ticker, err := ex.FetchTicker(context.Background(), "ETH/USDT")
	require.NoError(t, err)

	assert.Equal(t, "ETH/USDT", ticker.Symbol)
	decimalEqual(t, "2000.5", ticker.Last)
	decimalEqual(t, "2000", ticker.Bid)
	assert.Nil(t, ticker.Open)

	_, err = ex.FetchTicker(context.Background(), "BTC/EUR")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeMarketNotFound))
}

func TestExchange_FetchOrderBook(t *testing.T) {
	ex, _ := newTestExchange(t, nil)

	book, err := ex.FetchOrderBook(context.Background(), "ETH/USDT")
	require.NoError(t, err)

	assert.Equal(t, "ETH/USDT", book.Symbol)
	require.Len(t, book.Asks, 2)
	assert.Equal(t, "2001", book.Asks[0].Price.String())
}

func TestExchange_FetchOHLCV(t *testing.T) {
	ex, fake := newTestExchange(t, nil)
	fake.route("/api/tw/history/eth_usdt/60", `{"ok":true,"result":{"data":[
		{"t":1700007200,"o":"3","h":"3","l":"3","c":"3","v":"3"},
		{"t":1700000000,"o":"1","h":"1","l":"1","c":"1","v":"1"},
		{"t":1700003600,"o":"2","h":"2","l":"2","c":"2","v":"2"}
	]}}`)

	candles, err := ex.FetchOHLCV(context.Background(), "ETH/USDT", "1h", exchange.WithLimit(2))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "2", candles[0].Open.String())
	assert.Equal(t, "3", candles[1].Open.String())

	candles, err = ex.FetchOHLCV(context.Background(), "ETH/USDT", "60m", exchange.WithSince(time.Unix(1700000000, 0)), exchange.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "1", candles[0].Open.String())

	_, err = ex.FetchOHLCV(context.Background(), "ETH/USDT", "2h")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeBadRequest))
}

func TestExchange_FetchTrades(t *testing.T) {
	ex, fake := newTestExchange(t, nil)
	fake.route("/trade/api/trades", `{"ok":true,"result":{"trades":[
		{"id":1,"pair":"eth_usdt","price":"2000","quantity":"0.5","isBuyerMaker":true,"timestamp":1700000000000}
	]}}`)

	trades, err := ex.FetchTrades(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	require.Len(t, trades, 1)

	assert.Equal(t, core.SideSell, trades[0].Side)
	decimalEqual(t, "1000", &trades[0].Cost)
}

func TestExchange_PrivateCallsRequireCredentials(t *testing.T) {
	ex, fake := newTestExchange(t, nil)

	_, err := ex.FetchBalance(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeAuthentication))
	assert.Zero(t, fake.hitCount("/trade/api/ccxt/balance"))
}

func TestExchange_FetchBalance(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/balance", `{"ok":true,"result":{"balances":[
		{"symbol":"usdt","available":"10","locked":"2.5"}
	]}}`)

	balances, err := ex.FetchBalance(context.Background())
	require.NoError(t, err)

	total := balances.Total["USDT"]
	decimalEqual(t, "12.5", &total)
	free := balances.Free["USDT"]
	assert.Equal(t, "10", free.String())
}

func TestExchange_InvalidSignature(t *testing.T) {
	creds := core.Credentials{APIKey: "key", SecretKey: "wrong"}
	ex, fake := newTestExchange(t, &creds)
	fake.route("/trade/api/ccxt/balance", `{"ok":true,"result":{"balances":[]}}`)

	_, err := ex.FetchBalance(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidSignature))
}

func TestExchange_CreateOrder(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/ordercreate", `{"ok":true,"result":{
		"id":501,"clientOrderId":"client-1","pair":"eth_usdt","side":"buy","type":"limit",
		"price":"1900","quantity":"0.5","executed":"0","status":"created","timestamp":1700000000000
	}}`)

	order, err := ex.CreateOrder(context.Background(), &exchange.OrderRequest{
		Symbol: "ETH/USDT",
		Side:   core.SideBuy,
		Type:   core.TypeLimit,
		Amount: *apd.New(5, -1),
		Price:  apd.New(1900, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, "501", order.ID)
	assert.Equal(t, core.StatusOpen, order.Status)
	assert.Equal(t, "ETH/USDT", order.Symbol)
	assert.Equal(t,
		`{"amount":"0.5","clientOrderId":"client-1","pairId":"24","price":"1900","side":"buy","type":"limit"}`,
		fake.lastBody("/trade/api/ccxt/ordercreate"))

	t.Run("validation", func(t *testing.T) {
		_, err := ex.CreateOrder(context.Background(), &exchange.OrderRequest{
			Symbol: "ETH/USDT", Side: core.SideBuy, Type: core.TypeLimit, Amount: *apd.New(1, 0),
		})
		assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidOrder))

		_, err = ex.CreateOrder(context.Background(), &exchange.OrderRequest{
			Symbol: "ETH/USDT", Side: core.SideBuy, Type: core.TypeMarket,
		})
		assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidOrder))
	})

	t.Run("provider rejection", func(t *testing.T) {
		fake.route("/trade/api/ccxt/ordercreate", `{"ok":false,"message":"Insufficient funds"}`)

		_, err := ex.CreateOrder(context.Background(), &exchange.OrderRequest{
			Symbol: "ETH/USDT", Side: core.SideBuy, Type: core.TypeMarket, Amount: *apd.New(1, 0),
		})
		assert.True(t, core.IsErrorType(err, core.ErrorTypeInsufficientFunds))
	})
}

func TestExchange_CancelOrder(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/cancel-order", `{"ok":true,"result":{"message":"cancelled"}}`)

	order, err := ex.CancelOrder(context.Background(), "501", "ETH/USDT")
	require.NoError(t, err)

	assert.Equal(t, "501", order.ID)
	assert.Equal(t, "ETH/USDT", order.Symbol)
	assert.Equal(t, core.StatusCanceled, order.Status)
	assert.Equal(t, `{"id":"501"}`, fake.lastBody("/trade/api/ccxt/cancel-order"))
}

func TestExchange_FetchOrders(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/ordersOfUser", `{"ok":true,"result":{"count":3,"orders":[
		{"id":1,"pair":"eth_usdt","side":"buy","quantity":"1","status":"created","timestamp":1700000000000},
		{"id":2,"pair":"del_usdt","side":"sell","quantity":"1","status":"accepted","timestamp":1700000002000},
		{"id":3,"pair":"eth_usdt","side":"buy","quantity":"1","status":"cancelled","timestamp":1700000001000}
	]}}`)

	orders, err := ex.FetchOrders(context.Background(), "", exchange.WithLimit(2))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "3", orders[0].ID)
	assert.Equal(t, core.StatusCanceled, orders[0].Status)
	assert.Equal(t, "2", orders[1].ID)
	assert.Equal(t, "DEL/USDT", orders[1].Symbol)
	assert.Equal(t, core.StatusClosed, orders[1].Status)

	_, err = ex.FetchOpenOrders(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fake.hitCount("/trade/api/ccxt/ordersOfUser"))
}

func TestExchange_FetchClosedOrders(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/ordersOfUser", `{"ok":true,"result":{"count":1,"orders":[
		{"id":9,"pair":"eth_usdt","side":"sell","type":"limit","price":"2100","quantity":"1",
		 "executed":"1","status":"accepted","timestamp":1700000000000}
	]}}`)

	orders, err := ex.FetchClosedOrders(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ETH/USDT", orders[0].Symbol)
	assert.Equal(t, core.StatusClosed, orders[0].Status)

	query := fake.lastQuery("/trade/api/ccxt/ordersOfUser")
	assert.Contains(t, query, "type=closed")
	assert.Contains(t, query, "pairId=24")

	_, err = ex.FetchClosedOrders(context.Background(), "NOPE/USDT")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeMarketNotFound))
}

func TestExchange_FetchMyTrades(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/tradesOfUser", `{"ok":true,"result":{"count":2,"trades":[
		{"id":11,"pair":"eth_usdt","side":"buy","price":"2000","quantity":"0.5","orderId":7,
		 "isBuyerMaker":true,"timestamp":1700000001000,"fee":{"amount":"0.001","symbol":"eth"}},
		{"tradeId":12,"pair":"eth_usdt","side":"sell","price":"2010","quantity":"0.25",
		 "timestamp":1700000000000}
	]}}`)

	trades, err := ex.FetchMyTrades(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "12", trades[0].ID)
	assert.Equal(t, core.SideSell, trades[0].Side)
	decimalEqual(t, "502.5", &trades[0].Cost)

	assert.Equal(t, "11", trades[1].ID)
	assert.Equal(t, "7", trades[1].OrderID)
	assert.Equal(t, core.Maker, trades[1].TakerOrMaker)
	decimalEqual(t, "1000", &trades[1].Cost)
	require.NotNil(t, trades[1].Fee)

	assert.Contains(t, fake.lastQuery("/trade/api/ccxt/tradesOfUser"), "pairId=24")
}

func TestExchange_FetchOrder(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/order/7", `{"ok":true,"result":{
		"id":7,"pair":"eth_usdt","side":"sell","type":"market","quantity":"2","executed":"2",
		"executedPrice":"2000","status":"accepted"
	}}`)

	order, err := ex.FetchOrder(context.Background(), "7")
	require.NoError(t, err)

	assert.Equal(t, core.StatusClosed, order.Status)
	decimalEqual(t, "4000", order.Cost)
	decimalEqual(t, "0", order.Remaining)
}

func TestExchange_FetchDepositAddress(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/ccxt/address/btc", `{"ok":true,"result":{"address":"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"}}`)
	fake.route("/trade/api/ccxt/address/eth", `{"ok":true,"result":{"address":"0xnothex"}}`)

	addr, err := ex.FetchDepositAddress(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", addr.Currency)
	assert.Equal(t, "Bitcoin", addr.Network)

	_, err = ex.FetchDepositAddress(context.Background(), "ETH")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeInvalidAddress))

	_, err = ex.FetchDepositAddress(context.Background(), "DOGE")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeCurrencyNotFound))
	assert.Equal(t, int64(1), fake.hitCount("/trade/api/currencies"))
}

func TestExchange_FetchDepositsAndWithdrawals(t *testing.T) {
	ex, fake := newTestExchange(t, &testCreds)
	fake.route("/trade/api/transactionsOfUser", `{"ok":true,"result":{"transactions":[
		{"id":1,"type":"deposit","symbol":"btc","amount":"0.1","status":1,"timestamp":1700000000000},
		{"id":2,"type":"withdraw","symbol":"btc","amount":"0.05","status":2,"timestamp":1700000001000},
		{"id":3,"type":"deposit","symbol":"eth","amount":"1","status":-1,"timestamp":1700000002000}
	]}}`)

	deposits, err := ex.FetchDeposits(context.Background(), "BTC")
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "1", deposits[0].ID)
	assert.Equal(t, core.TransactionStatusOK, deposits[0].Status)

	withdrawals, err := ex.FetchWithdrawals(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, core.TransactionStatusPending, withdrawals[0].Status)

	all, err := ex.FetchDeposits(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExchange_NoncesIncreaseAcrossCalls(t *testing.T) {
	nonces := NewNonceSource(fixedClock(time.UnixMilli(1700000000000)))
	fake := newFakeBitTeam(t)
	fake.route("/trade/api/ccxt/balance", `{"ok":true,"result":{"balances":[]}}`)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	config := core.DefaultConfig("bitteam").WithBaseURL(srv.URL).WithCredentials(&testCreds)
	ex, err := New(config, WithNonceSource(nonces))
	require.NoError(t, err)
	defer ex.Close()

	for i := 0; i < 3; i++ {
		_, err := ex.FetchBalance(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1700000000003), nonces.Next())
}
