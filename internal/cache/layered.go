package cache

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

// LayeredCache checks layers in order (fastest first) and promotes hits
// into the faster layers.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a cache over the given layers; nil layers are skipped
func NewLayeredCache(layers ...Cache) *LayeredCache {
	c := &LayeredCache{}
	for _, l := range layers {
		if l != nil {
			c.layers = append(c.layers, l)
		}
	}
	return c
}

// New builds the cache described by cfg: memory, then disk when Dir is set,
// then Redis when RedisURL is set. It returns nil when caching is disabled.
func New(ctx context.Context, cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	layers := []Cache{NewMemoryCache(cfg.TTL, 10*time.Minute)}
	if cfg.Dir != "" {
		layers = append(layers, NewDiskCache(cfg.Dir, cfg.TTL))
	}
	if cfg.RedisURL != "" {
		rc, err := DialRedis(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		layers = append(layers, rc)
	}
	return NewLayeredCache(layers...), nil
}

// Get retrieves a value from the first layer that has it
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, layer := range c.layers {
		if val, found := layer.Get(ctx, key); found {
			for j := 0; j < i; j++ {
				_ = c.layers[j].Set(ctx, key, val, 0)
			}
			return val, true
		}
	}
	return nil, false
}

// Set stores a value in every layer
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Set(ctx, key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes a value from every layer
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes all values from every layer
func (c *LayeredCache) Clear(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every layer that holds a connection
func (c *LayeredCache) Close() error {
	var errs []error
	for _, layer := range c.layers {
		if closer, ok := layer.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
