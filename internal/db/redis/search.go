package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain/search/filter"
)

// scoreAlias names the distance column FT.SEARCH adds to each hit.
const scoreAlias = "__vector_score"

// SearchKNN runs a pre-filtered KNN query through FT.SEARCH. Hits come back
// nearest first and at most K of them.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Hit, error) {
	if q.Index == "" {
		return nil, errors.New("index name is required")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(searchArgs(q)...).Build()).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index") {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s: %w", q.Index, db.ErrIndexNotFound)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseHits(raw)
}

// searchArgs renders the FT.SEARCH arguments. Without an explicit LIMIT the
// server stops at 10 results, so the limit always follows K.
func searchArgs(q *db.KNNQuery) []string {
	params := []string{"BLOB", db.EncodeVector(q.Vector)}

	var knn strings.Builder
	fmt.Fprintf(&knn, "[KNN %d @%s $BLOB", q.K, db.VectorField)
	if q.EF > 0 {
		knn.WriteString(" EF_RUNTIME $EF")
		params = append(params, "EF", strconv.Itoa(q.EF))
	}
	knn.WriteString(" AS " + scoreAlias + "]")

	prefilter := "*"
	if tags := tagQuery(q.Filter); tags != "" {
		prefilter = "(" + tags + ")"
	}

	args := []string{q.Index, prefilter + "=>" + knn.String()}
	if n := len(q.Fields); n > 0 {
		args = append(args, "RETURN", strconv.Itoa(n+1))
		args = append(args, q.Fields...)
		args = append(args, scoreAlias)
	}
	args = append(args,
		"SORTBY", scoreAlias, "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", strconv.Itoa(len(params)),
	)
	args = append(args, params...)
	return append(args, "DIALECT", "2")
}

// parseHits reads the [total, key, fields, key, fields, ...] reply.
// Entries whose key or field list cannot be decoded are skipped.
func parseHits(raw []rueidis.RedisMessage) ([]db.Hit, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.Hit, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		fields := pairsToMap(pairs)
		hit := db.Hit{Key: key, Fields: fields}
		if d, ok := fields[scoreAlias]; ok {
			hit.Score = similarity(d)
			delete(fields, scoreAlias)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// similarity turns the reported cosine distance into a hit score.
func similarity(distance string) float64 {
	d, err := strconv.ParseFloat(distance, 64)
	if err != nil {
		return 0
	}
	return db.ScoreFromDistance(d)
}

func pairsToMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, err := pairs[j].ToString()
		if err != nil {
			continue
		}
		if value, err := pairs[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}

// tagQuery renders the filter as a RediSearch tag query. Required terms are
// ANDed by juxtaposition and excluded terms are negated with a leading dash.
func tagQuery(f filter.Tags) string {
	if f.Empty() {
		return ""
	}
	parts := make([]string, 0, len(f.Required())+len(f.Excluded()))
	for _, t := range f.Required() {
		parts = append(parts, tagTerm(t))
	}
	for _, t := range f.Excluded() {
		parts = append(parts, "-"+tagTerm(t))
	}
	return strings.Join(parts, " ")
}

func tagTerm(t filter.Term) string {
	return "@" + t.Field + ":{" + tagEscaper.Replace(t.Value) + "}"
}

// tagEscaper backslash-escapes the punctuation the tag query parser treats as syntax.
var tagEscaper = func() *strings.Replacer {
	const special = ",.<>{}\"':;!@#$%^&*()-+=~| /\\[]"
	pairs := make([]string, 0, 2*len(special))
	for _, r := range special {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}()
