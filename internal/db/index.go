package db

import (
	"errors"
	"fmt"
)

// DistanceMetric is the similarity function of the vector index.
type DistanceMetric string

const (
	// DistanceCosine ranks by cosine similarity.
	DistanceCosine DistanceMetric = "COSINE"
	// DistanceL2 ranks by Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceIP ranks by inner product.
	DistanceIP DistanceMetric = "IP"
)

// TagField is an exact-match field usable in KNN pre-filters.
type TagField struct {
	Name string
	// Separator splits multi-valued tags. Empty keeps the backend default.
	Separator     string
	CaseSensitive bool
}

// VectorIndex is the HNSW graph over the document embeddings.
// M and EFConstruct fall back to backend defaults when zero.
type VectorIndex struct {
	Dim         int
	Distance    DistanceMetric
	M           int
	EFConstruct int
}

// IndexDefinition describes the searchable layout of one document family.
// Redis maps it to FT.CREATE over hashes under Prefix; Qdrant maps it to a
// collection plus keyword payload indexes.
type IndexDefinition struct {
	Name   string
	Prefix string
	Tags   []TagField
	Vector VectorIndex
}

// Validate reports the first structural problem in the definition.
func (d *IndexDefinition) Validate() error {
	if !IsValidIdentifier(d.Name) {
		return fmt.Errorf("invalid index name %q", d.Name)
	}
	if d.Vector.Dim <= 0 {
		return errors.New("vector dimension must be positive")
	}
	if d.Vector.M < 0 || d.Vector.EFConstruct < 0 {
		return errors.New("hnsw parameters must not be negative")
	}
	switch d.Vector.Distance {
	case "", DistanceCosine, DistanceL2, DistanceIP:
	default:
		return fmt.Errorf("unknown distance metric %q", d.Vector.Distance)
	}

	seen := make(map[string]struct{}, len(d.Tags))
	for _, t := range d.Tags {
		if t.Name == "" || t.Name == VectorField {
			return fmt.Errorf("invalid tag field name %q", t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate tag field %q", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Metric returns the distance metric, cosine when unset.
func (v VectorIndex) Metric() DistanceMetric {
	if v.Distance == "" {
		return DistanceCosine
	}
	return v.Distance
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
