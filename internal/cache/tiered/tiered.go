// Package tiered puts a small in-process LRU in front of a shared cache.
package tiered

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/dealmap/internal/cache"
	"github.com/mohammed-shakir/dealmap/internal/core/observability"
)

const tierLocal = "local"

type Store struct {
	local   *expirable.LRU[string, []byte]
	backend cache.Interface
}

// New returns a Store. backend may be nil, in which case only the local
// tier is used. size <= 0 disables the local tier.
func New(size int, ttl time.Duration, backend cache.Interface) *Store {
	s := &Store{backend: backend}
	if size > 0 {
		s.local = expirable.NewLRU[string, []byte](size, nil, ttl)
	}
	return s
}

// MGet answers from the local tier first and asks the backend for the rest.
// Backend hits are copied into the local tier.
func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	missing := keys
	if s.local != nil {
		missing = make([]string, 0, len(keys))
		for _, k := range keys {
			if v, ok := s.local.Get(k); ok {
				out[k] = v
				continue
			}
			missing = append(missing, k)
		}
		observability.AddCacheHits(tierLocal, len(out))
		observability.AddCacheMisses(tierLocal, len(missing))
	}
	if len(missing) == 0 || s.backend == nil {
		return out, nil
	}

	got, err := s.backend.MGet(ctx, missing)
	if err != nil {
		return out, err
	}
	for k, v := range got {
		out[k] = v
		if s.local != nil {
			s.local.Add(k, v)
		}
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if s.local != nil {
		s.local.Add(key, val)
	}
	if s.backend == nil {
		return nil
	}
	return s.backend.Set(ctx, key, val, ttl)
}

// Del removes keys from both tiers. Local entries are dropped even when the
// backend call fails.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if s.local != nil {
		for _, k := range keys {
			s.local.Remove(k)
		}
	}
	if s.backend == nil || len(keys) == 0 {
		return nil
	}
	return s.backend.Del(ctx, keys...)
}

// Purge empties the local tier.
func (s *Store) Purge() {
	if s.local != nil {
		s.local.Purge()
	}
}

func (s *Store) LocalLen() int {
	if s.local == nil {
		return 0
	}
	return s.local.Len()
}
