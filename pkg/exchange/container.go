package exchange

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"bitteam/pkg/core"
)

// Container is a thread-safe registry of connectors keyed by name.
type Container struct {
	mu        sync.RWMutex
	exchanges map[string]Exchange
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		exchanges: make(map[string]Exchange),
	}
}

// Register adds a connector under name, replacing any previous one.
func (c *Container) Register(name string, ex Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges[name] = ex
}

// Get returns the connector registered under name, or a NOT_FOUND ExchangeError.
func (c *Container) Get(name string) (Exchange, error) {
	c.mu.RLock()
	ex, ok := c.exchanges[name]
	c.mu.RUnlock()
	if !ok {
		return nil, core.NewExchangeError(name, core.ErrorTypeNotFound, 0, "connector not registered").
			WithCode(core.ErrCodeNotFound)
	}
	return ex, nil
}

// Names returns the registered names in sorted order.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.exchanges))
	for name := range c.exchanges {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Unregister removes the connector under name and closes it.
func (c *Container) Unregister(name string) error {
	c.mu.Lock()
	ex, ok := c.exchanges[name]
	delete(c.exchanges, name)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return ex.Close()
}

func (c *Container) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.exchanges[name]
	return exists
}

// Close closes every registered connector and empties the container.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, ex := range c.exchanges {
		if err := ex.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.exchanges = make(map[string]Exchange)
	return errors.Join(errs...)
}
