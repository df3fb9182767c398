package exchange

import (
	"cmp"
	"slices"
	"time"

	"bitteam/pkg/core"
)

type Option func(*Options)

type Options struct {
	// Since keeps records at or after this instant; zero means no lower bound.
	Since time.Time
	// Limit caps the number of records; zero means no cap.
	Limit int
	// Params are passed to the provider as-is.
	Params core.Params
}

func WithSince(since time.Time) Option {
	return func(o *Options) {
		o.Since = since
	}
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

// WithParams adds provider-specific request parameters.
func WithParams(params core.Params) Option {
	return func(o *Options) {
		if o.Params == nil {
			o.Params = make(core.Params, len(params))
		}
		for k, v := range params {
			o.Params[k] = v
		}
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FilterBySinceLimit sorts items by timestamp and applies the since and limit
// filters. With since set the earliest limit items are kept, otherwise the
// latest limit items.
func FilterBySinceLimit[T any](items []T, timestamp func(T) time.Time, since time.Time, limit int) []T {
	result := slices.Clone(items)
	slices.SortStableFunc(result, func(a, b T) int {
		return cmp.Compare(timestamp(a).UnixNano(), timestamp(b).UnixNano())
	})

	if !since.IsZero() {
		result = slices.DeleteFunc(result, func(item T) bool {
			return timestamp(item).Before(since)
		})
	}

	if limit > 0 && len(result) > limit {
		if since.IsZero() {
			result = result[len(result)-limit:]
		} else {
			result = result[:limit]
		}
	}
	return result
}
