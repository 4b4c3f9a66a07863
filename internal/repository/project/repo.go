package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/simproj/internal/db"
	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	"github.com/kailas-cloud/simproj/internal/domain/search/filter"
	"github.com/kailas-cloud/simproj/internal/domain/search/result"
)

// store is the consumer interface for projects (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Hit, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements usecase/project.Repository and usecase/bulk.Repository.
type Repo struct {
	store store
	index IndexConfig
}

// New creates a project repository.
func New(s store, cfg IndexConfig) *Repo {
	return &Repo{store: s, index: cfg}
}

// EnsureIndex creates the project index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := projectIndex(r.index)
	if err := def.Validate(); err != nil {
		return fmt.Errorf("project index: %w", err)
	}
	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Create assigns a new id to p and stores it.
func (r *Repo) Create(ctx context.Context, p *domproj.Project) error {
	p.SetID(uuid.NewString())
	key := projectKey(p.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(p)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// CreateMany assigns ids and stores all projects in one pipelined write.
func (r *Repo) CreateMany(ctx context.Context, ps []domproj.Project) error {
	if len(ps) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(ps))
	for i := range ps {
		ps[i].SetID(uuid.NewString())
		items[i] = db.HashSetItem{Key: projectKey(ps[i].ID()), Fields: buildHashFields(&ps[i])}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi (%d projects): %w", len(items), err)
	}
	return nil
}

// Get returns a project by id.
func (r *Repo) Get(ctx context.Context, id string) (domproj.Project, error) {
	key := projectKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domproj.Project{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domproj.Project{}, domain.ErrProjectNotFound
	}
	return parseHashFields(id, m)
}

// Save overwrites a stored project with its current state.
func (r *Repo) Save(ctx context.Context, p *domproj.Project) error {
	key := projectKey(p.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(p)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// NearestAccepted returns up to k accepted projects of the session closest to
// vector, most similar first. excludeID, when set, is never returned.
func (r *Repo) NearestAccepted(
	ctx context.Context, sessionID string, vector []float32, excludeID string, k int,
) ([]result.Match, error) {
	sameSession := filter.Tags{}.
		Require(fieldStatus, string(domproj.StatusAccepted)).
		Require(fieldSessionID, sessionID).
		Exclude(fieldProjectID, excludeID)

	hits, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		Index:  indexName(),
		Vector: vector,
		K:      k,
		Filter: sameSession,
		EF:     r.index.EFRuntime,
		Fields: []string{fieldProjectID, fieldTitle, fieldAbstract},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	matches := make([]result.Match, 0, len(hits))
	for _, h := range hits {
		id := h.Fields[fieldProjectID]
		if id == "" {
			id = strings.TrimPrefix(h.Key, keyPrefix())
		}
		// Backends may apply the tag filter approximately.
		if id == excludeID {
			continue
		}
		matches = append(matches, result.New(id, h.Fields[fieldTitle], h.Fields[fieldAbstract], h.Score))
	}
	return matches, nil
}

func keyPrefix() string {
	return domain.KeyPrefix + "project:"
}

func projectKey(id string) string {
	return keyPrefix() + id
}

func indexName() string {
	return domain.KeyPrefix + "projects:idx"
}
