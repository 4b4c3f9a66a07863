package project

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/simproj/internal/db"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
)

// mockStore answers with zero values unless a hook is set.
type mockStore struct {
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) ([]db.Hit, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn == nil {
		return nil
	}
	return m.hsetFn(ctx, key, fields)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn == nil {
		return nil
	}
	return m.hsetMultiFn(ctx, items)
}

// HGetAll mirrors redis: a missing key is an empty map, not an error.
func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn == nil {
		return map[string]string{}, nil
	}
	return m.hgetAllFn(ctx, key)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Hit, error) {
	if m.searchKNNFn == nil {
		return nil, nil
	}
	return m.searchKNNFn(ctx, q)
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn == nil {
		return nil
	}
	return m.createIndexFn(ctx, def)
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn == nil {
		return false, nil
	}
	return m.indexExistsFn(ctx, name)
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, IndexConfig{Dimensions: 4, M: 16, EFConstruct: 200, EFRuntime: 100}), ms
}

// testProject is an accepted project in session s-1 with a 4-dim embedding.
func testProject(t *testing.T) domproj.Project {
	t.Helper()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return domproj.Reconstruct("p-1", "Graph Coloring", "A study", domproj.StatusAccepted,
		"s-1", "u-1", []float32{0.1, 0.2, 0.3, 0.4}, ts, ts)
}
