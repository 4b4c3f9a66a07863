package project

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/simproj/internal/db"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
)

// Hash field names. Tag fields are indexed for pre-filtering.
const (
	fieldProjectID = "project_id"
	fieldTitle     = "title"
	fieldAbstract  = "abstract"
	fieldStatus    = "status"
	fieldSessionID = "session_id"
	fieldCreatorID = "creator_id"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// buildHashFields flattens a project into hash fields.
func buildHashFields(p *domproj.Project) map[string]string {
	return map[string]string{
		fieldProjectID: p.ID(),
		fieldTitle:     p.Title(),
		fieldAbstract:  p.Abstract(),
		fieldStatus:    string(p.Status()),
		fieldSessionID: p.SessionID(),
		fieldCreatorID: p.CreatorID(),
		fieldCreatedAt: p.CreatedAt().Format(time.RFC3339Nano),
		fieldUpdatedAt: p.UpdatedAt().Format(time.RFC3339Nano),
		db.VectorField: db.EncodeVector(p.Embedding()),
	}
}

// parseHashFields rebuilds a project from stored hash fields.
func parseHashFields(id string, m map[string]string) (domproj.Project, error) {
	status, err := domproj.ParseStatus(m[fieldStatus])
	if err != nil {
		return domproj.Project{}, fmt.Errorf("project %s: %w", id, err)
	}
	vector, err := db.DecodeVector(m[db.VectorField])
	if err != nil {
		return domproj.Project{}, fmt.Errorf("project %s: %w", id, err)
	}
	createdAt := parseTime(m[fieldCreatedAt])
	updatedAt := parseTime(m[fieldUpdatedAt])

	return domproj.Reconstruct(
		id, m[fieldTitle], m[fieldAbstract], status,
		m[fieldSessionID], m[fieldCreatorID], vector, createdAt, updatedAt,
	), nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
