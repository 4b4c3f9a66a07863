// Package db defines the storage contracts shared by the Redis and Qdrant backends.
package db

import (
	"context"
	"time"
)

// VectorStore keeps project documents and answers KNN queries over them.
// Both backends implement it; consumers declare the narrow subset they use.
//
//nolint:interfacebloat // backend facade, consumers depend on sub-interfaces
type VectorStore interface {
	Pinger
	HashStore
	IndexManager
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Store is what the Redis backend offers: documents plus small keys.
type Store interface {
	VectorStore
	KVStore
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one document for HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore reads and writes documents as flat string maps. A missing key
// reads as an empty map, never as an error.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// KVStore holds cached vectors and budget counters.
type KVStore interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put overwrites key. A ttl of zero or less never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Incr adds delta and returns the new total. The ttl only lands on a key
	// without an expiry, so a window keeps its first deadline.
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// IndexManager creates the vector index at startup.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs filtered KNN queries. Hits are ordered nearest first.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) ([]Hit, error)
}
