// Package cache provides the in-memory TTL cache used for planner
// replies.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"go.uber.org/zap"
)

// InMemoryCache is a thread-safe TTL cache. It implements voyago.Cache.
type InMemoryCache struct {
	store  map[string]cacheItem
	mutex  sync.RWMutex
	ttl    time.Duration
	logger *zap.Logger
	done   chan struct{}
	once   sync.Once
}

type cacheItem struct {
	value      interface{}
	expiration int64
}

// CacheOption configures an InMemoryCache.
type CacheOption func(*InMemoryCache)

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *InMemoryCache) { c.logger = logger }
}

// NewInMemoryCache creates a cache whose entries expire after defaultTTL.
// A background goroutine sweeps expired entries until Close is called.
func NewInMemoryCache(defaultTTL time.Duration, options ...CacheOption) *InMemoryCache {
	c := &InMemoryCache{
		store:  make(map[string]cacheItem),
		ttl:    defaultTTL,
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	go c.cleanupLoop(10 * time.Minute)
	return c
}

// Lookup retrieves an item, reporting misses and expiry as typed errors.
func (c *InMemoryCache) Lookup(ctx context.Context, key string) (interface{}, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, found := c.store[key]
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item not found", nil))
	}
	if time.Now().UnixNano() > item.expiration {
		// Expired entries are removed by the sweep, not here.
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item expired", nil))
	}
	return item.value, nil
}

// Get implements voyago.Cache.
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, err := c.Lookup(ctx, key)
	if err != nil {
		c.logger.Debug("cache miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return value, true
}

// Set implements voyago.Cache.
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store[key] = cacheItem{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
}

// Close stops the background sweep.
func (c *InMemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now().UnixNano()
			for key, item := range c.store {
				if now > item.expiration {
					delete(c.store, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}
