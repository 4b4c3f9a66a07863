package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/simproj/internal/db"
)

// keyField holds the original hash key in the point payload.
const keyField = "__key"

// pointNamespace seeds deterministic point ids derived from hash keys.
var pointNamespace = uuid.MustParse("8f0d3c1e-5a4b-4c2d-9e7f-1a2b3c4d5e6f")

func pointID(key string) *pb.PointId {
	id := uuid.NewSHA1(pointNamespace, []byte(key))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

// HSet upserts the point for key. Unlike Redis HSET the whole payload is replaced.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	return s.HSetMulti(ctx, []db.HashSetItem{{Key: key, Fields: fields}})
}

// HSetMulti upserts all items in one request.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(items))
	for _, item := range items {
		p, err := toPoint(item.Key, item.Fields)
		if err != nil {
			return &db.Error{Op: db.OpUpsert, Err: err}
		}
		points = append(points, p)
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Err: err}
	}
	return nil
}

// HGetAll returns the payload of the point for key plus its encoded vector.
// A missing point yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            []*pb.PointId{pointID(key)},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpGetPoints, Err: err}
	}
	if len(resp.GetResult()) == 0 {
		return map[string]string{}, nil
	}

	p := resp.GetResult()[0]
	fields := fromPayload(p.GetPayload(), nil)
	delete(fields, keyField)
	if v := denseVector(p.GetVectors().GetVector()); len(v) > 0 {
		fields[db.VectorField] = db.EncodeVector(v)
	}
	return fields, nil
}

// denseVector reads the dense form, falling back to the legacy data field
// older servers fill.
func denseVector(v *pb.VectorOutput) []float32 {
	if d := v.GetDense().GetData(); len(d) > 0 {
		return d
	}
	return v.GetData() //nolint:staticcheck // legacy servers
}

func toPoint(key string, fields map[string]string) (*pb.PointStruct, error) {
	blob, ok := fields[db.VectorField]
	if !ok {
		return nil, fmt.Errorf("key %s: %s field is required", key, db.VectorField)
	}
	vector, err := db.DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", key, err)
	}

	payload := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		if k == db.VectorField {
			continue
		}
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	payload[keyField] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: key}}

	return &pb.PointStruct{
		Id:      pointID(key),
		Vectors: pb.NewVectorsDense(vector),
		Payload: payload,
	}, nil
}

// fromPayload keeps string values; when only is non-empty, other keys are dropped.
func fromPayload(payload map[string]*pb.Value, only []string) map[string]string {
	out := make(map[string]string, len(payload))
	keep := func(string) bool { return true }
	if len(only) > 0 {
		set := make(map[string]bool, len(only))
		for _, f := range only {
			set[f] = true
		}
		keep = func(k string) bool { return set[k] }
	}
	for k, v := range payload {
		if !keep(k) {
			continue
		}
		if sv, ok := v.GetKind().(*pb.Value_StringValue); ok {
			out[k] = sv.StringValue
		}
	}
	return out
}
