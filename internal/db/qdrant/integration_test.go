//go:build integration

package qdrant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain/search/filter"
)

const grpcPort = "6334/tcp"

// startQdrant runs a Qdrant server and returns a store bound to a fresh collection.
func startQdrant(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "qdrant/qdrant:v1.13.4",
			ExposedPorts: []string{grpcPort},
			WaitingFor:   wait.ForListeningPort(grpcPort).WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start qdrant")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, grpcPort)
	require.NoError(t, err)

	s, err := NewStore(Config{Host: host, Port: port.Int(), Collection: "it_projects"})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.WaitForReady(ctx, 30*time.Second))
	return s
}

func TestIntegration_RoundTripAndFilteredSearch(t *testing.T) {
	s := startQdrant(t)
	ctx := context.Background()

	def := &db.IndexDefinition{
		Name:   "it:projects",
		Prefix: "it:project:",
		Tags: []db.TagField{
			{Name: "status"},
			{Name: "session_id"},
			{Name: "project_id"},
		},
		Vector: db.VectorIndex{Dim: 2, M: 16, EFConstruct: 100},
	}
	require.NoError(t, s.CreateIndex(ctx, def))
	require.ErrorIs(t, s.CreateIndex(ctx, def), db.ErrIndexExists)

	exists, err := s.IndexExists(ctx, def.Name)
	require.NoError(t, err)
	require.True(t, exists)

	items := []db.HashSetItem{
		{Key: "it:project:a", Fields: map[string]string{
			"title": "a", "status": "accepted", "session_id": "s1", "project_id": "a",
			db.VectorField: db.EncodeVector([]float32{1, 0}),
		}},
		{Key: "it:project:b", Fields: map[string]string{
			"title": "b", "status": "accepted", "session_id": "s1", "project_id": "b",
			db.VectorField: db.EncodeVector([]float32{0.8, 0.6}),
		}},
		{Key: "it:project:c", Fields: map[string]string{
			"title": "c", "status": "pending", "session_id": "s1", "project_id": "c",
			db.VectorField: db.EncodeVector([]float32{1, 0}),
		}},
		{Key: "it:project:d", Fields: map[string]string{
			"title": "d", "status": "accepted", "session_id": "s2", "project_id": "d",
			db.VectorField: db.EncodeVector([]float32{1, 0}),
		}},
	}
	require.NoError(t, s.HSetMulti(ctx, items))

	got, err := s.HGetAll(ctx, "it:project:b")
	require.NoError(t, err)
	require.Equal(t, "b", got["title"])
	require.Equal(t, "accepted", got["status"])
	vec, err := db.DecodeVector(got[db.VectorField])
	require.NoError(t, err)
	require.InDeltaSlice(t, []float32{0.8, 0.6}, vec, 1e-6)

	missing, err := s.HGetAll(ctx, "it:project:zzz")
	require.NoError(t, err)
	require.Empty(t, missing)

	hits, err := s.SearchKNN(ctx, &db.KNNQuery{
		Vector: []float32{1, 0},
		K:      10,
		Filter: filter.Tags{}.
			Require("status", "accepted").
			Require("session_id", "s1").
			Exclude("project_id", "a"),
		Fields: []string{"title"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "it:project:b", hits[0].Key)
	require.Equal(t, map[string]string{"title": "b"}, hits[0].Fields)
	require.InDelta(t, 0.9, hits[0].Score, 1e-4)
}
