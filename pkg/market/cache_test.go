package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitteam/pkg/core"
)

func testMarkets() []core.Market {
	return []core.Market{
		{ID: "eth_usdt", Symbol: "ETH/USDT", Base: "ETH", Quote: "USDT", BaseID: "eth", QuoteID: "usdt", Active: true},
		{ID: "btc_usdt", Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT", BaseID: "btc", QuoteID: "usdt", Active: true},
	}
}

func TestCache_EnsureLoaded(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		calls.Add(1)
		return testMarkets(), nil
	})

	assert.Equal(t, StateCold, cache.State())
	require.NoError(t, cache.EnsureLoaded(context.Background()))
	require.NoError(t, cache.EnsureLoaded(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateWarm, cache.State())
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cache.Symbols())

	markets := cache.Markets()
	require.Len(t, markets, 2)
	assert.Equal(t, "btc_usdt", markets[0].ID)
}

func TestCache_ConcurrentFirstLoadFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		calls.Add(1)
		<-release
		return testMarkets(), nil
	})

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- cache.EnsureLoaded(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		return cache.State() == StatePopulating
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateWarm, cache.State())
}

func TestCache_FailedLoadKeepsPriorState(t *testing.T) {
	fail := errors.New("upstream down")
	var shouldFail atomic.Bool
	shouldFail.Store(true)

	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		if shouldFail.Load() {
			return nil, fail
		}
		return testMarkets(), nil
	})

	err := cache.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fail)
	assert.Equal(t, StateCold, cache.State())
	assert.Equal(t, 0, cache.Len())

	shouldFail.Store(false)
	require.NoError(t, cache.EnsureLoaded(context.Background()))
	assert.Equal(t, 2, cache.Len())

	shouldFail.Store(true)
	require.Error(t, cache.Refresh(context.Background()))
	assert.Equal(t, StateWarm, cache.State())
	assert.Equal(t, 2, cache.Len())
	_, err = cache.Market("ETH/USDT")
	assert.NoError(t, err)
}

func TestCache_RefreshReplacesContents(t *testing.T) {
	var round atomic.Int32
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		if round.Add(1) == 1 {
			return testMarkets(), nil
		}
		return []core.Market{{ID: "del_usdt", Symbol: "DEL/USDT", Base: "DEL", Quote: "USDT"}}, nil
	})

	require.NoError(t, cache.EnsureLoaded(context.Background()))
	require.NoError(t, cache.Refresh(context.Background()))

	assert.Equal(t, []string{"DEL/USDT"}, cache.Symbols())
	_, err := cache.Market("ETH/USDT")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeMarketNotFound))
}

func TestCache_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		<-release
		return testMarkets(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cache.EnsureLoaded(ctx)
	}()

	require.Eventually(t, func() bool {
		return cache.State() == StatePopulating
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		return cache.State() == StateWarm
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_Resolve(t *testing.T) {
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		return testMarkets(), nil
	})
	require.NoError(t, cache.EnsureLoaded(context.Background()))

	tests := []struct {
		name       string
		input      string
		wantSymbol string
		wantID     string
		wantErr    bool
	}{
		{"by_symbol", "ETH/USDT", "ETH/USDT", "eth_usdt", false},
		{"by_id", "btc_usdt", "BTC/USDT", "btc_usdt", false},
		{"synthesized", "del_usdt", "DEL/USDT", "del_usdt", false},
		{"no_separator", "delusdt", "", "", true},
		{"empty_half", "del_", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := cache.Resolve(tt.input, "_")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsErrorType(err, core.ErrorTypeMarketNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSymbol, m.Symbol)
			assert.Equal(t, tt.wantID, m.ID)
			assert.Equal(t, m.Base+"/"+m.Quote, m.Symbol)
		})
	}
}

func TestCache_ResolveOnColdCacheSynthesizes(t *testing.T) {
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		return nil, errors.New("unused")
	})

	m, err := cache.Resolve("eth_usdt", "_")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", m.Symbol)
	assert.Equal(t, "eth", m.BaseID)
	assert.Equal(t, "usdt", m.QuoteID)
}

func TestCache_MarketReturnsCopy(t *testing.T) {
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		return testMarkets(), nil
	})
	require.NoError(t, cache.EnsureLoaded(context.Background()))

	m, err := cache.Market("eth_usdt")
	require.NoError(t, err)
	m.Symbol = "MUTATED"

	again, err := cache.Market("eth_usdt")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", again.Symbol)
}

func TestCache_CopiesShareNoState(t *testing.T) {
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		return []core.Market{{
			ID:     "eth_usdt",
			Symbol: "ETH/USDT",
			Taker:  apd.New(2, -3),
			Limits: core.MarketLimits{Price: core.MinMax{Min: apd.New(1, -2)}},
			Info:   core.Info{"settings": map[string]any{"price_min": "0.01"}},
		}}, nil
	})
	require.NoError(t, cache.EnsureLoaded(context.Background()))

	m, err := cache.Market("ETH/USDT")
	require.NoError(t, err)
	m.Taker.SetInt64(9)
	m.Limits.Price.Min.SetInt64(9)
	m.Info["settings"].(map[string]any)["price_min"] = "9"
	m.Info["added"] = true

	listed := cache.Markets()[0]
	listed.Taker.SetInt64(7)

	again, err := cache.Market("eth_usdt")
	require.NoError(t, err)
	assert.Equal(t, "0.002", again.Taker.String())
	assert.Equal(t, "0.01", again.Limits.Price.Min.String())
	assert.Equal(t, "0.01", again.Info["settings"].(map[string]any)["price_min"])
	assert.NotContains(t, again.Info, "added")
}

func TestCache_DuplicatesKeepCountsConsistent(t *testing.T) {
	cache := NewCache("bitteam", func(ctx context.Context) ([]core.Market, error) {
		return []core.Market{
			{ID: "eth_usdt", Symbol: "ETH/USDT"},
			{ID: "eth_usdt_old", Symbol: "ETH/USDT"},
			{ID: "btc_usdt", Symbol: "BTC/USDT"},
			{ID: "btc_usdt", Symbol: "XBT/USDT"},
		}, nil
	})
	require.NoError(t, cache.EnsureLoaded(context.Background()))

	assert.Equal(t, 2, cache.Len())
	assert.Len(t, cache.Markets(), cache.Len())
	assert.Equal(t, []string{"ETH/USDT", "XBT/USDT"}, cache.Symbols())

	m, err := cache.Market("ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "eth_usdt_old", m.ID)

	_, err = cache.Market("eth_usdt")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeMarketNotFound))
	_, err = cache.Market("BTC/USDT")
	assert.True(t, core.IsErrorType(err, core.ErrorTypeMarketNotFound))

	m, err = cache.Market("btc_usdt")
	require.NoError(t, err)
	assert.Equal(t, "XBT/USDT", m.Symbol)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "COLD", StateCold.String())
	assert.Equal(t, "POPULATING", StatePopulating.String())
	assert.Equal(t, "WARM", StateWarm.String())
}
