package loadercache

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/f1-race-predictor/log"
	"github.com/mpapenbr/f1-race-predictor/pkg/utils/cache"
)

type (
	Option[K comparable, V any] func(*config[K, V])
	item[T any]                 struct {
		data    T
		expires time.Time
	}
	LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (*V, error)
	config[K comparable, V any]     struct {
		expiration time.Duration
		loader     LoaderFunc[K, V]
		clock      func() time.Time
		l          *log.Logger
	}
	loaderCache[K comparable, V any] struct {
		mutex  sync.Mutex
		items  map[K]item[*V]
		config *config[K, V]
	}
)

// WithExpiration sets the time to live of entries. Zero keeps entries until
// they are invalidated.
func WithExpiration[K comparable, V any](expiration time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.expiration = expiration
	}
}

func WithLoader[K comparable, V any](lf LoaderFunc[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = lf
	}
}

func WithClock[K comparable, V any](clock func() time.Time) Option[K, V] {
	return func(c *config[K, V]) {
		c.clock = clock
	}
}

func WithLogger[K comparable, V any](arg *log.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		c.l = arg
	}
}

func New[K comparable, V any](opts ...Option[K, V]) cache.Cache[K, V] {
	c := &config[K, V]{
		expiration: 5 * time.Minute,
		clock:      time.Now,
		l:          log.Default().Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return &loaderCache[K, V]{
		items:  make(map[K]item[*V]),
		config: c,
	}
}

// Get returns the cached value or loads it. Errors of the loader are not
// cached.
func (c *loaderCache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if cacheItem, ok := c.items[key]; ok {
		if cacheItem.expires.IsZero() || c.config.clock().Before(cacheItem.expires) {
			return cacheItem.data, nil
		}
		delete(c.items, key)
	}
	return c.load(ctx, key)
}

func (c *loaderCache[K, V]) load(ctx context.Context, key K) (*V, error) {
	if c.config.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	v, err := c.config.loader(ctx, key)
	c.config.l.Debug("loaderCache.load", log.Any("key", key))
	if err != nil {
		c.config.l.Debug("error loading entry", log.Any("key", key), log.ErrorField(err))
		return nil, err
	}
	entry := item[*V]{data: v}
	if c.config.expiration > 0 {
		entry.expires = c.config.clock().Add(c.config.expiration)
	}
	c.items[key] = entry
	return v, nil
}

func (c *loaderCache[K, V]) Invalidate(ctx context.Context, key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
	c.config.l.Debug("Invalidate",
		log.Any("key", key), log.Int("remain items", len(c.items)))
}

func (c *loaderCache[K, V]) InvalidateAll(ctx context.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.config.l.Debug("InvalidateAll", log.Int("items", len(c.items)))
	clear(c.items)
}
