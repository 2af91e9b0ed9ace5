// Package cache stores extraction results keyed by document content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

const keyPrefix = "claimlink:v1:"

// Key generates a cache key for a document of the given kind from its content
func Key(kind string, content []byte) string {
	hash := sha256.Sum256(content)
	return keyPrefix + kind + ":" + hex.EncodeToString(hash[:])
}
