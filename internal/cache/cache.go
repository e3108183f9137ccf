// Package cache defines the byte cache used for GeoServer answers.
package cache

import (
	"context"
	"time"
)

// Interface is a key/value byte store. MGet omits missing keys from the
// result instead of returning an error.
type Interface interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Get is a single-key MGet.
func Get(ctx context.Context, c Interface, key string) ([]byte, bool, error) {
	m, err := c.MGet(ctx, []string{key})
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}
