package db

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/simproj/internal/domain/search/filter"
)

// MaxK caps how many neighbours a single query may ask for.
const MaxK = 1000

// KNNQuery asks for the K documents nearest to Vector that pass Filter.
type KNNQuery struct {
	Index  string
	Vector []float32
	K      int
	Filter filter.Tags
	// EF widens the HNSW candidate list at query time. 0 keeps the backend default.
	EF int
	// Fields limits the returned document fields. Empty returns all of them.
	Fields []string
}

// Validate checks the parts every backend relies on. Index is backend specific
// and checked by the stores that need it.
func (q *KNNQuery) Validate() error {
	switch {
	case len(q.Vector) == 0:
		return errors.New("vector is required")
	case q.K <= 0:
		return errors.New("k must be positive")
	case q.K > MaxK:
		return fmt.Errorf("k must be at most %d", MaxK)
	case q.EF < 0:
		return errors.New("ef must not be negative")
	}
	return q.Filter.Validate()
}

// Hit is one ranked document. Score is in [0, 1], higher is closer.
// See ScoreFromCosine.
type Hit struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// ScoreFromCosine maps cosine similarity in [-1, 1] onto [0, 1] as (1+cos)/2.
// Session thresholds are expressed on this scale, so every backend reports it.
func ScoreFromCosine(cos float64) float64 {
	return min(1, max(0, (1+cos)/2))
}

// ScoreFromDistance does the same for a cosine distance (1-cos) in [0, 2].
func ScoreFromDistance(d float64) float64 {
	return ScoreFromCosine(1 - d)
}
