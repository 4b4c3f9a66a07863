// Package redis implements the db interfaces on Redis 8 (or Redis Stack) with rueidis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/simproj/internal/db"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// options maps Config onto rueidis. Client-side caching stays off because
// every read must observe the latest project status.
func (c Config) options() rueidis.ClientOption {
	return rueidis.ClientOption{
		InitAddress:  c.Addrs,
		Username:     c.Username,
		Password:     c.Password,
		SelectDB:     c.DB,
		DisableCache: true,
		// FT.SEARCH replies are parsed as RESP2 arrays.
		AlwaysRESP2: true,
	}
}

// Store serves project hashes, the FT vector index and plain keys from one client.
type Store struct {
	client rueidis.Client
}

// NewStore dials the configured addresses.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}
	client, err := rueidis.NewClient(cfg.options())
	if err != nil {
		return nil, fmt.Errorf("redis: connect %s: %w", strings.Join(cfg.Addrs, ","), err)
	}
	return &Store{client: client}, nil
}

// Ping round-trips a PING.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady polls Ping until it succeeds or timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitReady(ctx, "redis", timeout, s.Ping)
}

func (s *Store) Close() { s.client.Close() }

func (s *Store) b() rueidis.Builder { return s.client.B() }

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

// isRedisErr matches a server error reply by case-insensitive substring.
// Transport errors never match.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
