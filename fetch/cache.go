package fetch

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pevans/pagewatch/strategy"
)

// Cached memoizes successful fetches per URL and engine for a fixed TTL.
type Cached struct {
	next  Fetcher
	cache *cache.Cache
}

// NewCached wraps next with a cache of the given TTL.
func NewCached(next Fetcher, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Fetch implements Fetcher. Errors are not cached.
func (c *Cached) Fetch(ctx context.Context, rawURL string, engine strategy.Engine) (*Page, error) {
	key := strategy.FormatEngine(engine) + " " + rawURL
	if v, ok := c.cache.Get(key); ok {
		return v.(*Page), nil
	}

	page, err := c.next.Fetch(ctx, rawURL, engine)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, page, cache.DefaultExpiration)
	return page, nil
}
