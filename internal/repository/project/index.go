package project

import (
	"github.com/kailas-cloud/simproj/internal/db"
)

// IndexConfig sizes the vector index.
type IndexConfig struct {
	Dimensions  int
	M           int
	EFConstruct int
	EFRuntime   int
}

// projectIndex is the cosine HNSW index over project hashes. Status, session
// and id are tags so similarity can pre-filter on them.
func projectIndex(cfg IndexConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:   indexName(),
		Prefix: keyPrefix(),
		Tags: []db.TagField{
			{Name: fieldStatus},
			{Name: fieldSessionID, Separator: ",", CaseSensitive: true},
			{Name: fieldProjectID, Separator: ",", CaseSensitive: true},
		},
		Vector: db.VectorIndex{
			Dim:         cfg.Dimensions,
			Distance:    db.DistanceCosine,
			M:           cfg.M,
			EFConstruct: cfg.EFConstruct,
		},
	}
}
