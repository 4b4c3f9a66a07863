package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/simproj/internal/domain"
	domsess "github.com/kailas-cloud/simproj/internal/domain/session"
)

// hashStore is the consumer interface for session hashes (ISP).
type hashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// HashRepo reads sessions stored as hashes under <prefix>session:<id>
// with fields status, auto_reject and threshold.
type HashRepo struct {
	store hashStore
}

// NewHashRepo creates a hash-backed session repository.
func NewHashRepo(s hashStore) *HashRepo {
	return &HashRepo{store: s}
}

// Get returns a session by id.
func (r *HashRepo) Get(ctx context.Context, id string) (domsess.Session, error) {
	key := sessionKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domsess.Session{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domsess.Session{}, domain.ErrSessionNotFound
	}

	autoReject := false
	if v := m["auto_reject"]; v != "" {
		autoReject, err = strconv.ParseBool(v)
		if err != nil {
			return domsess.Session{}, fmt.Errorf("session %s: auto_reject %q: %w", id, v, err)
		}
	}
	threshold := 0.0
	if v := m["threshold"]; v != "" {
		threshold, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return domsess.Session{}, fmt.Errorf("session %s: threshold %q: %w", id, v, err)
		}
	}

	s, err := domsess.New(id, domsess.Status(m["status"]), autoReject, threshold)
	if err != nil {
		return domsess.Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	return s, nil
}

func sessionKey(id string) string {
	return domain.KeyPrefix + "session:" + id
}
