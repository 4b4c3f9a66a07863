package project

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	"github.com/kailas-cloud/simproj/internal/domain/search/request"
	"github.com/kailas-cloud/simproj/internal/domain/search/result"
	"github.com/kailas-cloud/simproj/internal/metrics"
)

// SubmitInput carries a single submission.
type SubmitInput struct {
	Title     string
	Abstract  string
	SessionID string
	CreatorID string
}

// Service handles submissions, updates and similarity queries.
type Service struct {
	projects Repository
	sessions SessionReader
	embedder Embedder
	dims     int
	logger   *zap.Logger
}

// New creates a project service. dims is the expected embedding length, 0 disables the check.
func New(projects Repository, sessions SessionReader, embedder Embedder, dims int, logger *zap.Logger) *Service {
	return &Service{
		projects: projects,
		sessions: sessions,
		embedder: embedder,
		dims:     dims,
		logger:   logger,
	}
}

// Submit stores a new project. With auto-reject on, a project whose closest
// accepted peer in the session exceeds the threshold is stored as rejected.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domproj.Project, error) {
	p, err := domproj.New(in.Title, in.Abstract, in.SessionID, in.CreatorID)
	if err != nil {
		return domproj.Project{}, err //nolint:wrapcheck // domain validation error
	}

	sess, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return domproj.Project{}, fmt.Errorf("get session: %w", err)
	}
	if !sess.IsActive() {
		return domproj.Project{}, domain.ErrSessionInactive
	}

	vec, err := s.embed(ctx, p.Text())
	if err != nil {
		return domproj.Project{}, err
	}
	p.SetEmbedding(vec)

	if sess.AutoReject() {
		top, err := s.projects.NearestAccepted(ctx, sess.ID(), vec, "", 1)
		if err != nil {
			return domproj.Project{}, fmt.Errorf("search duplicates: %w", err)
		}
		if len(top) > 0 && sess.ShouldReject(top[0].Score()) {
			p.SetStatus(domproj.StatusRejected)
			s.logger.Info("Project auto-rejected",
				zap.String("session_id", sess.ID()),
				zap.String("closest_id", top[0].ID()),
				zap.Float64("similarity", top[0].Score()),
				zap.Float64("threshold", sess.Threshold()),
			)
		}
	}

	if err := s.projects.Create(ctx, &p); err != nil {
		return domproj.Project{}, fmt.Errorf("create project: %w", err)
	}
	metrics.ProjectSubmissionsTotal.WithLabelValues(p.Status().String()).Inc()
	return p, nil
}

// Update replaces title and abstract and recomputes the embedding.
// Status, session and creator stay as they are.
func (s *Service) Update(ctx context.Context, id, title, abstract string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := domproj.ValidateText(title, abstract); err != nil {
		return err //nolint:wrapcheck // domain validation error
	}

	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}

	vec, err := s.embed(ctx, domproj.EmbeddingText(title, abstract))
	if err != nil {
		return err
	}
	p.Revise(title, abstract, vec)

	if err := s.projects.Save(ctx, &p); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	metrics.ProjectUpdatesTotal.Inc()
	return nil
}

// Similar returns up to k accepted projects of the same session closest to
// the given project, most similar first. The project itself is never included.
func (s *Service) Similar(ctx context.Context, req request.Similar) ([]result.Match, error) {
	if err := validateID(req.ProjectID()); err != nil {
		return nil, err
	}

	p, err := s.projects.Get(ctx, req.ProjectID())
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	matches, err := s.projects.NearestAccepted(ctx, p.SessionID(), p.Embedding(), p.ID(), req.K())
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	if len(matches) > req.K() {
		matches = matches[:req.K()]
	}
	metrics.SimilarResultsReturned.Observe(float64(len(matches)))
	return matches, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize project: %w", err)
	}
	domain.RequestUsageFrom(ctx).Record(res.TotalTokens)
	if s.dims > 0 && len(res.Embedding) != s.dims {
		return nil, fmt.Errorf(
			"vector dimension mismatch: got %d, want %d: %w",
			len(res.Embedding), s.dims, domain.ErrVectorDimMismatch,
		)
	}
	return res.Embedding, nil
}

func validateID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("project_id must be a UUID: %w", domain.ErrInvalidInput)
	}
	return nil
}
