package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/simproj/internal/db"
)

// CreateIndex creates the bound collection sized by def.Vector and adds a
// keyword payload index for every tag field.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	exists, err := s.IndexExists(ctx, def.Name)
	if err != nil {
		return err
	}
	if exists {
		return db.ErrIndexExists
	}

	if _, err := s.collections.Create(ctx, buildCreateCollection(s.collection, def)); err != nil {
		return &db.Error{Op: db.OpCreateCollection, Err: err}
	}

	wait := true
	for _, tag := range def.Tags {
		_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: s.collection,
			Wait:           &wait,
			FieldName:      tag.Name,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return &db.Error{Op: db.OpCreateCollection, Err: fmt.Errorf("payload index %s: %w", tag.Name, err)}
		}
	}
	return nil
}

// IndexExists reports whether the bound collection exists.
func (s *Store) IndexExists(ctx context.Context, _ string) (bool, error) {
	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return false, &db.Error{Op: db.OpCollectionExists, Err: err}
	}
	return resp.GetResult().GetExists(), nil
}

func buildCreateCollection(name string, def *db.IndexDefinition) *pb.CreateCollection {
	v := def.Vector
	req := &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(v.Dim),
					Distance: toDistance(v.Metric()),
				},
			},
		},
	}
	if v.M > 0 || v.EFConstruct > 0 {
		req.HnswConfig = &pb.HnswConfigDiff{}
		if v.M > 0 {
			m := uint64(v.M)
			req.HnswConfig.M = &m
		}
		if v.EFConstruct > 0 {
			ef := uint64(v.EFConstruct)
			req.HnswConfig.EfConstruct = &ef
		}
	}
	return req
}

func toDistance(d db.DistanceMetric) pb.Distance {
	switch d {
	case db.DistanceL2:
		return pb.Distance_Euclid
	case db.DistanceIP:
		return pb.Distance_Dot
	default:
		return pb.Distance_Cosine
	}
}
