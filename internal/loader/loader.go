// Package loader fetches external resources for query expressions. The
// Source contract is one batched call: urls in, ordered resource lists out.
// Cache fronts a Source for the lifetime of one resolution pass so that a
// url is fetched at most once no matter how many rounds ask for it.
package loader

import (
	"context"
	"errors"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formscope/internal/ctxlog"
)

// Source resolves a batch of url strings to ordered resource lists. A
// missing entry in the returned map means no resources for that url.
// Results for the same url must be stable within one pass.
type Source interface {
	Fetch(ctx context.Context, urls []string) (map[string][]cty.Value, error)
}

// Cache is the per-pass loader façade: it deduplicates urls, remembers every
// result, and downgrades loader failures to empty results unless the
// failure is a cancellation.
type Cache struct {
	src     Source
	results map[string][]cty.Value
}

// NewCache wraps a Source for one resolution pass.
func NewCache(src Source) *Cache {
	return &Cache{src: src, results: make(map[string][]cty.Value)}
}

// Fetch returns results for every requested url, issuing at most one
// batched call to the underlying source for the urls not yet cached.
func (c *Cache) Fetch(ctx context.Context, urls []string) (map[string][]cty.Value, error) {
	var misses []string
	seen := make(map[string]bool, len(urls))
	for _, url := range urls {
		if seen[url] {
			continue
		}
		seen[url] = true
		if _, ok := c.results[url]; !ok {
			misses = append(misses, url)
		}
	}

	if len(misses) > 0 {
		fetched, err := c.src.Fetch(ctx, misses)
		switch {
		case err == nil:
			// A url the source stayed silent on resolves to no resources.
			for _, url := range misses {
				c.results[url] = fetched[url]
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			ctxlog.FromContext(ctx).Warn("Resource fetch failed, treating urls as empty.",
				"urls", misses, "error", err)
			for _, url := range misses {
				c.results[url] = nil
			}
		}
	}

	out := make(map[string][]cty.Value, len(urls))
	for url := range seen {
		out[url] = c.results[url]
	}
	return out, nil
}
