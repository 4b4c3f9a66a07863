package qdrant

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain/search/filter"
)

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("simproj:project:1").GetUuid()
	b := pointID("simproj:project:1").GetUuid()
	c := pointID("simproj:project:2").GetUuid()

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}

func TestToPoint(t *testing.T) {
	p, err := toPoint("simproj:project:1", map[string]string{
		"title":        "Graph Coloring",
		"status":       "accepted",
		db.VectorField: db.EncodeVector([]float32{0.5, -1}),
	})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.5, -1}, p.GetVectors().GetVector().GetDense().GetData())
	assert.Equal(t, "Graph Coloring", p.GetPayload()["title"].GetStringValue())
	assert.Equal(t, "simproj:project:1", p.GetPayload()[keyField].GetStringValue())
	assert.NotContains(t, p.GetPayload(), db.VectorField)
}

func TestDenseVector(t *testing.T) {
	dense := &pb.VectorOutput{Vector: &pb.VectorOutput_Dense{Dense: &pb.DenseVector{Data: []float32{1, 2}}}}
	assert.Equal(t, []float32{1, 2}, denseVector(dense))

	legacy := &pb.VectorOutput{Data: []float32{3}}
	assert.Equal(t, []float32{3}, denseVector(legacy))

	assert.Empty(t, denseVector(nil))
}

func TestToPoint_MissingVector(t *testing.T) {
	_, err := toPoint("k", map[string]string{"title": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field is required")
}

func TestToPoint_BadVector(t *testing.T) {
	_, err := toPoint("k", map[string]string{db.VectorField: "abc"})
	require.Error(t, err)
}

func TestFromPayload(t *testing.T) {
	payload := map[string]*pb.Value{
		"title":    {Kind: &pb.Value_StringValue{StringValue: "t"}},
		"abstract": {Kind: &pb.Value_StringValue{StringValue: "a"}},
		"count":    {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
	}

	all := fromPayload(payload, nil)
	assert.Equal(t, map[string]string{"title": "t", "abstract": "a"}, all)

	only := fromPayload(payload, []string{"title"})
	assert.Equal(t, map[string]string{"title": "t"}, only)
}

func TestToHit(t *testing.T) {
	p := &pb.ScoredPoint{
		Score: 0.87,
		Payload: map[string]*pb.Value{
			keyField: {Kind: &pb.Value_StringValue{StringValue: "simproj:project:9"}},
			"title":  {Kind: &pb.Value_StringValue{StringValue: "t"}},
			"status": {Kind: &pb.Value_StringValue{StringValue: "accepted"}},
		},
	}

	e := toHit(p, []string{"title"})
	assert.Equal(t, "simproj:project:9", e.Key)
	assert.InDelta(t, 0.935, e.Score, 1e-6)
	assert.Equal(t, map[string]string{"title": "t"}, e.Fields)
}

func TestPayloadFilter(t *testing.T) {
	assert.Nil(t, payloadFilter(filter.Tags{}))

	f := payloadFilter(filter.Tags{}.
		Require("status", "accepted").
		Require("session_id", "s1").
		Exclude("project_id", "p1"))
	require.Len(t, f.GetMust(), 2)
	require.Len(t, f.GetMustNot(), 1)
	assert.Empty(t, f.GetShould())

	first := f.GetMust()[0].GetField()
	assert.Equal(t, "status", first.GetKey())
	assert.Equal(t, "accepted", first.GetMatch().GetKeyword())
	assert.Equal(t, "p1", f.GetMustNot()[0].GetField().GetMatch().GetKeyword())
}

func TestSearchKNN_RejectsBadQuery(t *testing.T) {
	s := &Store{collection: "projects"}
	_, err := s.SearchKNN(t.Context(), &db.KNNQuery{K: 1})
	require.Error(t, err)
	_, err = s.SearchKNN(t.Context(), &db.KNNQuery{Vector: []float32{1}})
	require.Error(t, err)
}

func TestBuildCreateCollection(t *testing.T) {
	def := &db.IndexDefinition{
		Name:   "simproj:projects:idx",
		Tags:   []db.TagField{{Name: "status"}},
		Vector: db.VectorIndex{Dim: 384, M: 16, EFConstruct: 200},
	}

	req := buildCreateCollection("projects", def)

	params := req.GetVectorsConfig().GetParams()
	assert.Equal(t, "projects", req.GetCollectionName())
	assert.Equal(t, uint64(384), params.GetSize())
	assert.Equal(t, pb.Distance_Cosine, params.GetDistance())
	assert.Equal(t, uint64(16), req.GetHnswConfig().GetM())
	assert.Equal(t, uint64(200), req.GetHnswConfig().GetEfConstruct())
}

func TestBuildCreateCollection_BackendDefaults(t *testing.T) {
	req := buildCreateCollection("c", &db.IndexDefinition{Name: "c", Vector: db.VectorIndex{Dim: 8}})
	assert.Nil(t, req.GetHnswConfig())
}

func TestToDistance(t *testing.T) {
	assert.Equal(t, pb.Distance_Euclid, toDistance(db.DistanceL2))
	assert.Equal(t, pb.Distance_Dot, toDistance(db.DistanceIP))
	assert.Equal(t, pb.Distance_Cosine, toDistance(db.DistanceCosine))
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(Config{Collection: "c"})
	require.Error(t, err)
	_, err = NewStore(Config{Host: "localhost", Port: 6334})
	require.Error(t, err)

	s, err := NewStore(Config{Host: "localhost", Port: 6334, Collection: "c", APIKey: "k"})
	require.NoError(t, err)
	s.Close()
}
