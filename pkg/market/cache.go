// Package market holds the Market Cache: the single authority for resolving
// canonical symbols and provider pair ids to markets.
package market

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"bitteam/pkg/core"
)

// State is the lifecycle state of a Cache.
type State int

const (
	// StateCold means no markets have been loaded yet.
	StateCold State = iota
	// StatePopulating means a fetch is in flight.
	StatePopulating
	// StateWarm means the cache holds a complete market set.
	StateWarm
)

func (s State) String() string {
	return [...]string{"COLD", "POPULATING", "WARM"}[s]
}

// Loader fetches and normalizes the full market list.
type Loader func(ctx context.Context) ([]core.Market, error)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for population events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// Cache stores markets keyed by provider id and canonical symbol.
// It is populated at most once per EnsureLoaded generation; Refresh replaces the
// contents. Concurrent loads collapse onto one fetch and a failed fetch leaves
// the previous contents untouched. Cache is safe for concurrent use.
type Cache struct {
	exchange string
	loader   Loader
	logger   zerolog.Logger
	group    singleflight.Group

	mu       sync.RWMutex
	state    State
	byID     map[string]*core.Market
	bySymbol map[string]*core.Market
	symbols  []string
}

// NewCache creates a cold cache that loads markets through loader.
func NewCache(exchange string, loader Loader, opts ...Option) *Cache {
	c := &Cache{
		exchange: exchange,
		loader:   loader,
		logger:   zerolog.Nop(),
		byID:     make(map[string]*core.Market),
		bySymbol: make(map[string]*core.Market),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureLoaded populates the cache if it is not warm yet. Calls on a warm cache
// return immediately. A caller whose ctx ends stops waiting; the shared fetch
// still completes for the others.
func (c *Cache) EnsureLoaded(ctx context.Context) error {
	if c.State() == StateWarm {
		return nil
	}
	return c.load(ctx, false)
}

// Refresh reloads all markets and replaces the cache contents on success.
func (c *Cache) Refresh(ctx context.Context) error {
	return c.load(ctx, true)
}

func (c *Cache) load(ctx context.Context, force bool) error {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("markets", func() (any, error) {
		return nil, c.populate(shared, force)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Cache) populate(ctx context.Context, force bool) error {
	c.mu.Lock()
	if c.state == StateWarm && !force {
		c.mu.Unlock()
		return nil
	}
	prev := c.state
	c.state = StatePopulating
	c.mu.Unlock()

	c.logger.Debug().Str("exchange", c.exchange).Bool("refresh", force).Msg("loading markets")

	markets, err := c.loader(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = prev
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("exchange", c.exchange).Msg("market load failed")
		return fmt.Errorf("load markets: %w", err)
	}

	byID := make(map[string]*core.Market, len(markets))
	bySymbol := make(map[string]*core.Market, len(markets))
	for i := range markets {
		m := &markets[i]
		// A later record wins; the entry it displaces leaves both indexes.
		if prev, dup := bySymbol[m.Symbol]; dup {
			c.logger.Warn().
				Str("symbol", m.Symbol).
				Str("kept", m.ID).
				Str("dropped", prev.ID).
				Msg("duplicate market symbol")
			delete(byID, prev.ID)
		}
		if prev, dup := byID[m.ID]; dup {
			c.logger.Warn().
				Str("id", m.ID).
				Str("kept", m.Symbol).
				Str("dropped", prev.Symbol).
				Msg("duplicate market id")
			delete(bySymbol, prev.Symbol)
		}
		byID[m.ID] = m
		bySymbol[m.Symbol] = m
	}
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	slices.Sort(symbols)

	c.mu.Lock()
	c.byID = byID
	c.bySymbol = bySymbol
	c.symbols = symbols
	c.state = StateWarm
	c.mu.Unlock()

	c.logger.Debug().Str("exchange", c.exchange).Int("markets", len(symbols)).Msg("markets loaded")
	return nil
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Len returns the number of cached markets; it always equals len(Markets()).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols)
}

// Market returns the cached market for a canonical symbol or provider id. The
// result is a deep copy the caller may modify.
func (c *Cache) Market(symbolOrID string) (*core.Market, error) {
	if m, ok := c.lookup(symbolOrID); ok {
		return m, nil
	}
	return nil, core.MarketNotFound(c.exchange, symbolOrID)
}

// Resolve returns the cached market for symbolOrID. When the identifier is not
// cached, a minimal market is synthesized by splitting it on sep and upper-casing
// both halves. Identifiers without sep yield MarketNotFound.
func (c *Cache) Resolve(symbolOrID, sep string) (*core.Market, error) {
	if m, ok := c.lookup(symbolOrID); ok {
		return m, nil
	}
	if sep == "" {
		return nil, core.MarketNotFound(c.exchange, symbolOrID)
	}
	baseID, quoteID, ok := strings.Cut(symbolOrID, sep)
	if !ok || baseID == "" || quoteID == "" {
		return nil, core.MarketNotFound(c.exchange, symbolOrID)
	}
	base, quote := strings.ToUpper(baseID), strings.ToUpper(quoteID)
	return &core.Market{
		ID:      symbolOrID,
		Symbol:  base + "/" + quote,
		Base:    base,
		Quote:   quote,
		BaseID:  baseID,
		QuoteID: quoteID,
	}, nil
}

func (c *Cache) lookup(key string) (*core.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.bySymbol[key]
	if !ok {
		m, ok = c.byID[key]
	}
	if !ok {
		return nil, false
	}
	cp := m.Clone()
	return &cp, true
}

// Markets returns deep copies of all cached markets ordered by symbol.
func (c *Cache) Markets() []core.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Market, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, c.bySymbol[s].Clone())
	}
	return out
}

// Symbols returns the cached canonical symbols in sorted order.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.symbols)
}
