package project

import (
	"context"

	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	"github.com/kailas-cloud/simproj/internal/domain/search/result"
	domsess "github.com/kailas-cloud/simproj/internal/domain/session"
)

// Repository defines the storage contract for projects.
type Repository interface {
	Create(ctx context.Context, p *domproj.Project) error
	Get(ctx context.Context, id string) (domproj.Project, error)
	Save(ctx context.Context, p *domproj.Project) error
	NearestAccepted(
		ctx context.Context, sessionID string, vector []float32, excludeID string, k int,
	) ([]result.Match, error)
}

// SessionReader resolves sessions.
type SessionReader interface {
	Get(ctx context.Context, id string) (domsess.Session, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
