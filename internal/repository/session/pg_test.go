package session

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/simproj/internal/domain"
)

// fakeRow scans fixed values or returns err.
type fakeRow struct {
	status     string
	autoReject bool
	threshold  float64
	err        error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.status
	*dest[1].(*bool) = r.autoReject
	*dest[2].(*float64) = r.threshold
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	args []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	q.args = args
	return q.row
}

func TestPGRepo_Get(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{status: "active", autoReject: true, threshold: 75}}

	s, err := NewPGRepo(q).Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.args) != 1 || q.args[0] != "s-1" {
		t.Errorf("args = %v", q.args)
	}
	if !s.IsActive() || !s.AutoReject() || s.Threshold() != 75 {
		t.Errorf("unexpected session: %+v", s)
	}
}

func TestPGRepo_NotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewPGRepo(q).Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPGRepo_QueryError(t *testing.T) {
	boom := errors.New("conn refused")
	q := &fakeQuerier{row: fakeRow{err: boom}}
	_, err := NewPGRepo(q).Get(context.Background(), "s")
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPGRepo_InvalidThreshold(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{status: "active", threshold: -5}}
	if _, err := NewPGRepo(q).Get(context.Background(), "s"); err == nil {
		t.Fatal("expected validation error")
	}
}
