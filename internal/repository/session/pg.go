package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/simproj/internal/domain"
	domsess "github.com/kailas-cloud/simproj/internal/domain/session"
)

// querier is the consumer interface for PostgreSQL (ISP).
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectSession = `SELECT status, auto_reject, threshold FROM sessions WHERE id = $1`

// PGRepo reads sessions from the sessions table.
type PGRepo struct {
	db querier
}

// NewPGRepo creates a PostgreSQL-backed session repository.
func NewPGRepo(q querier) *PGRepo {
	return &PGRepo{db: q}
}

// Get returns a session by id.
func (r *PGRepo) Get(ctx context.Context, id string) (domsess.Session, error) {
	var (
		status     string
		autoReject bool
		threshold  float64
	)
	err := r.db.QueryRow(ctx, selectSession, id).Scan(&status, &autoReject, &threshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domsess.Session{}, domain.ErrSessionNotFound
		}
		return domsess.Session{}, fmt.Errorf("select session %s: %w", id, err)
	}

	s, err := domsess.New(id, domsess.Status(status), autoReject, threshold)
	if err != nil {
		return domsess.Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	return s, nil
}
