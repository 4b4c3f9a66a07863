package db

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by KVStore.Get for a missing key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when a search names an index that does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex when the index is already there.
	ErrIndexExists = errors.New("db: index already exists")
)

// Redis commands, used as Error.Op.
const (
	OpPing        = "PING"
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpHGetAll     = "HGETALL"
	OpHSet        = "HSET"
	OpGet         = "GET"
	OpSet         = "SET"
	OpIncr        = "INCRBY"
)

// Qdrant RPCs, used as Error.Op.
const (
	OpUpsert           = "qdrant.Upsert"
	OpGetPoints        = "qdrant.Get"
	OpSearchPoints     = "qdrant.Search"
	OpCreateCollection = "qdrant.CreateCollection"
	OpCollectionExists = "qdrant.CollectionExists"
)

// Error ties a backend failure to the command that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }
