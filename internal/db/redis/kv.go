package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/simproj/internal/db"
)

// Get returns the raw value at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case err == nil:
		return data, nil
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	default:
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
}

// Put writes value with SET, adding EX when ttl is positive.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.b().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Incr pipelines INCRBY and EXPIRE NX in one round-trip.
func (s *Store) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	cmds := rueidis.Commands{s.b().Incrby().Key(key).Increment(delta).Build()}
	if ttl > 0 {
		cmds = append(cmds, s.b().Expire().Key(key).Seconds(int64(ttl/time.Second)).Nx().Build())
	}

	res := s.client.DoMulti(ctx, cmds...)
	total, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncr, Err: err}
	}
	if len(res) > 1 {
		if err := res[1].Error(); err != nil {
			return total, &db.Error{Op: db.OpIncr, Err: err}
		}
	}
	return total, nil
}
