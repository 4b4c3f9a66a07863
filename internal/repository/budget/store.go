// Package budget persists embedding token counters in the key-value store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/simproj/internal/db"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Store adapts a db.KVStore to the budget tracker's counter interface.
type Store struct {
	kv kv
}

// New creates a budget store on backend.
func New(backend kv) *Store {
	return &Store{kv: backend}
}

// Add increments the counter at key. ttl is set on the first increment only.
func (s *Store) Add(ctx context.Context, key string, tokens int64, ttl time.Duration) (int64, error) {
	total, err := s.kv.Incr(ctx, key, tokens, ttl)
	if err != nil {
		return 0, fmt.Errorf("budget add %s: %w", key, err)
	}
	return total, nil
}

// Load returns the counter at key, zero when it does not exist yet.
func (s *Store) Load(ctx context.Context, key string) (int64, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget load %s: %w", key, err)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget load %s: corrupt counter %q: %w", key, raw, err)
	}
	return n, nil
}
