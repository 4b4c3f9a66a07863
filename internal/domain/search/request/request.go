package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/simproj/internal/domain"
)

// MaxK caps the neighbour count of a similarity query.
const MaxK = 100

// Similar is a validated "projects like this one" query.
type Similar struct {
	projectID string
	k         int
}

// NewSimilar validates k and clamps it to MaxK.
func NewSimilar(projectID string, k int) (Similar, error) {
	if strings.TrimSpace(projectID) == "" {
		return Similar{}, fmt.Errorf("project_id is required: %w", domain.ErrInvalidInput)
	}
	if k < 1 {
		return Similar{}, fmt.Errorf("k must be a positive integer, got %d: %w", k, domain.ErrInvalidInput)
	}
	if k > MaxK {
		k = MaxK
	}
	return Similar{projectID: projectID, k: k}, nil
}

// ProjectID returns the reference project.
func (r *Similar) ProjectID() string { return r.projectID }

// K returns the number of neighbours to return.
func (r *Similar) K() int { return r.k }
