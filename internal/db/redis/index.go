package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/simproj/internal/db"
)

// CreateIndex issues FT.CREATE over the hashes under def.Prefix.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(createArgs(def)...).Build()
	err := s.do(ctx, cmd).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// IndexExists probes the index with FT.INFO. "Unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	if err == nil {
		return true, nil
	}
	if isRedisErr(err, "unknown index name") {
		return false, nil
	}
	return false, &db.Error{Op: db.OpIndexInfo, Err: err}
}

// createArgs renders a validated definition as FT.CREATE arguments:
//
//	<name> ON HASH [PREFIX 1 <prefix>] SCHEMA <tag>... __vector VECTOR HNSW <n> <attrs>...
func createArgs(def *db.IndexDefinition) []string {
	args := []string{def.Name, "ON", "HASH"}
	if def.Prefix != "" {
		args = append(args, "PREFIX", "1", def.Prefix)
	}
	args = append(args, "SCHEMA")
	for _, t := range def.Tags {
		args = append(args, tagArgs(t)...)
	}
	return append(args, vectorArgs(def.Vector)...)
}

func tagArgs(t db.TagField) []string {
	out := []string{t.Name, "TAG"}
	if t.Separator != "" {
		out = append(out, "SEPARATOR", t.Separator)
	}
	if t.CaseSensitive {
		out = append(out, "CASESENSITIVE")
	}
	return out
}

func vectorArgs(v db.VectorIndex) []string {
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(v.Metric()),
	}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruct))
	}
	return append([]string{db.VectorField, "VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
