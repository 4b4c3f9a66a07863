package project

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/simproj/internal/domain"
)

// MaxTextBytes caps title and abstract individually.
const MaxTextBytes = 16 * 1024

// Project is a submitted project together with its embedding.
type Project struct {
	id        string
	title     string
	abstract  string
	status    Status
	sessionID string
	creatorID string
	embedding []float32
	createdAt time.Time
	updatedAt time.Time
}

// New validates submission fields and creates a pending project without id or embedding.
// creatorID may be empty (bulk imports have no creator).
func New(title, abstract, sessionID, creatorID string) (Project, error) {
	if err := ValidateText(title, abstract); err != nil {
		return Project{}, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return Project{}, fmt.Errorf("session_id is required: %w", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	return Project{
		title:     title,
		abstract:  abstract,
		status:    StatusPending,
		sessionID: sessionID,
		creatorID: creatorID,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ValidateText checks the user-editable text fields.
func ValidateText(title, abstract string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(abstract) == "" {
		return fmt.Errorf("abstract is required: %w", domain.ErrInvalidInput)
	}
	if len(title) > MaxTextBytes {
		return fmt.Errorf("title too large (max %d bytes): %w", MaxTextBytes, domain.ErrInvalidInput)
	}
	if len(abstract) > MaxTextBytes {
		return fmt.Errorf("abstract too large (max %d bytes): %w", MaxTextBytes, domain.ErrInvalidInput)
	}
	return nil
}

// Reconstruct creates a Project without validation (storage hydration).
func Reconstruct(
	id, title, abstract string, status Status, sessionID, creatorID string,
	embedding []float32, createdAt, updatedAt time.Time,
) Project {
	return Project{
		id: id, title: title, abstract: abstract, status: status,
		sessionID: sessionID, creatorID: creatorID, embedding: embedding,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// EmbeddingText is the text a project is embedded from.
func EmbeddingText(title, abstract string) string {
	return title + abstract
}

// ID returns the project identifier (empty until stored).
func (p *Project) ID() string { return p.id }

// Title returns the project title.
func (p *Project) Title() string { return p.title }

// Abstract returns the project abstract.
func (p *Project) Abstract() string { return p.abstract }

// Status returns the review status.
func (p *Project) Status() Status { return p.status }

// SessionID returns the owning session.
func (p *Project) SessionID() string { return p.sessionID }

// CreatorID returns the submitting user, empty for none.
func (p *Project) CreatorID() string { return p.creatorID }

// Embedding returns the embedding vector.
func (p *Project) Embedding() []float32 { return p.embedding }

// CreatedAt returns the creation time (UTC).
func (p *Project) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last modification time (UTC).
func (p *Project) UpdatedAt() time.Time { return p.updatedAt }

// Text returns the embedding input for the current title and abstract.
func (p *Project) Text() string { return EmbeddingText(p.title, p.abstract) }

// SetID assigns the storage identifier.
func (p *Project) SetID(id string) { p.id = id }

// SetEmbedding sets the vector in place.
func (p *Project) SetEmbedding(v []float32) { p.embedding = v }

// SetStatus sets the review status in place.
func (p *Project) SetStatus(s Status) { p.status = s }

// Revise replaces title, abstract and embedding and bumps the update time.
// Status, session and creator are untouched.
func (p *Project) Revise(title, abstract string, embedding []float32) {
	p.title = title
	p.abstract = abstract
	p.embedding = embedding
	p.updatedAt = time.Now().UTC()
}
