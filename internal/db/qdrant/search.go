package qdrant

import (
	"context"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain/search/filter"
)

// SearchKNN runs a filtered nearest-neighbour search over the collection.
// q.Index is ignored: one store serves one collection. With cosine distance
// the returned scores are already similarities.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         q.Vector,
		Filter:         payloadFilter(q.Filter),
		Limit:          uint64(q.K),
		WithPayload:    pb.NewWithPayload(true),
	}
	if q.EF > 0 {
		req.Params = &pb.SearchParams{HnswEf: pb.PtrOf(uint64(q.EF))}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchPoints, Err: err}
	}

	hits := make([]db.Hit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, toHit(p, q.Fields))
	}
	return hits, nil
}

func toHit(p *pb.ScoredPoint, fields []string) db.Hit {
	payload := p.GetPayload()
	out := fromPayload(payload, fields)
	delete(out, keyField)
	return db.Hit{
		Key:    payload[keyField].GetStringValue(),
		Score:  db.ScoreFromCosine(float64(p.GetScore())),
		Fields: out,
	}
}

// payloadFilter maps required terms to Must and excluded terms to MustNot.
func payloadFilter(f filter.Tags) *pb.Filter {
	if f.Empty() {
		return nil
	}
	return &pb.Filter{
		Must:    keywordConditions(f.Required()),
		MustNot: keywordConditions(f.Excluded()),
	}
}

func keywordConditions(terms []filter.Term) []*pb.Condition {
	if len(terms) == 0 {
		return nil
	}
	out := make([]*pb.Condition, 0, len(terms))
	for _, t := range terms {
		out = append(out, pb.NewMatchKeyword(t.Field, t.Value))
	}
	return out
}
