package bulk

import (
	"context"

	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	domsess "github.com/kailas-cloud/simproj/internal/domain/session"
)

// Repository stores imported projects in one write.
type Repository interface {
	CreateMany(ctx context.Context, ps []domproj.Project) error
}

// SessionReader resolves sessions.
type SessionReader interface {
	Get(ctx context.Context, id string) (domsess.Session, error)
}

// BatchEmbedder vectorizes several texts per provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
