// Package bulk imports projects from CSV uploads.
//
// The first row is a header and is skipped. Every data row must have exactly
// two columns, title and abstract. One bad row fails the whole upload and
// nothing is stored. Imported projects are accepted as-is: the session must
// exist, but its status and auto-reject policy do not apply.
package bulk

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	"github.com/kailas-cloud/simproj/internal/metrics"
)

// Defaults for Limits fields left at zero.
const (
	DefaultMaxRows        = 5000
	DefaultEmbedBatchSize = 64
)

// Limits bounds a single import.
type Limits struct {
	MaxRows        int
	EmbedBatchSize int
}

// Service handles bulk CSV imports.
type Service struct {
	projects Repository
	sessions SessionReader
	embedder BatchEmbedder
	dims     int
	limits   Limits
	logger   *zap.Logger
}

// New creates a bulk import service. dims is the expected embedding length, 0 disables the check.
func New(
	projects Repository, sessions SessionReader, embedder BatchEmbedder,
	dims int, limits Limits, logger *zap.Logger,
) *Service {
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultMaxRows
	}
	if limits.EmbedBatchSize <= 0 {
		limits.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return &Service{
		projects: projects,
		sessions: sessions,
		embedder: embedder,
		dims:     dims,
		limits:   limits,
		logger:   logger,
	}
}

// Import reads CSV rows from r into accepted projects of the session and
// returns how many were stored.
func (s *Service) Import(ctx context.Context, sessionID string, r io.Reader) (int, error) {
	n, err := s.importCSV(ctx, sessionID, r)
	if err != nil {
		metrics.BulkImportsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.BulkImportsTotal.WithLabelValues("ok").Inc()
	metrics.BulkImportedProjectsTotal.Add(float64(n))
	return n, nil
}

func (s *Service) importCSV(ctx context.Context, sessionID string, r io.Reader) (int, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, fmt.Errorf("session_id is required: %w", domain.ErrInvalidInput)
	}
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return 0, fmt.Errorf("get session: %w", err)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("empty file, header row expected: %w", domain.ErrMalformedCSV)
		}
		return 0, csvError(err)
	}

	var (
		projects []domproj.Project
		pending  []int // indexes into projects awaiting an embedding
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		texts := make([]string, len(pending))
		for i, idx := range pending {
			texts[i] = projects[idx].Text()
		}
		if err := s.embedInto(ctx, projects, pending, texts); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, csvError(err)
		}
		line, _ := cr.FieldPos(0)

		if len(record) != 2 {
			return 0, domain.NewRowError(line, fmt.Errorf(
				"expected 2 columns (title, abstract), got %d: %w", len(record), domain.ErrMalformedCSV))
		}
		if len(projects) == s.limits.MaxRows {
			return 0, fmt.Errorf("too many rows (max %d): %w", s.limits.MaxRows, domain.ErrInvalidInput)
		}

		title := strings.ToValidUTF8(record[0], "\uFFFD")
		abstract := strings.ToValidUTF8(record[1], "\uFFFD")
		p, err := domproj.New(title, abstract, sessionID, "")
		if err != nil {
			return 0, domain.NewRowError(line, err)
		}
		p.SetStatus(domproj.StatusAccepted)

		projects = append(projects, p)
		pending = append(pending, len(projects)-1)
		if len(pending) == s.limits.EmbedBatchSize {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}

	if len(projects) == 0 {
		return 0, nil
	}
	if err := s.projects.CreateMany(ctx, projects); err != nil {
		return 0, fmt.Errorf("store projects: %w", err)
	}

	s.logger.Info("Bulk import completed",
		zap.String("session_id", sessionID),
		zap.Int("count", len(projects)),
	)
	return len(projects), nil
}

func (s *Service) embedInto(ctx context.Context, projects []domproj.Project, idx []int, texts []string) error {
	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("vectorize rows: %w", err)
	}
	domain.RequestUsageFrom(ctx).Record(res.TotalTokens)
	if len(res.Embeddings) != len(texts) {
		return fmt.Errorf("provider returned %d embeddings for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	for i, vec := range res.Embeddings {
		if s.dims > 0 && len(vec) != s.dims {
			return fmt.Errorf(
				"vector dimension mismatch: got %d, want %d: %w",
				len(vec), s.dims, domain.ErrVectorDimMismatch,
			)
		}
		projects[idx[i]].SetEmbedding(vec)
	}
	return nil
}

// csvError converts a reader failure into a malformed-upload error pinned to its line.
func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return domain.NewRowError(pe.Line, fmt.Errorf("%s: %w", pe.Err.Error(), domain.ErrMalformedCSV))
	}
	return fmt.Errorf("read csv: %w", err)
}
