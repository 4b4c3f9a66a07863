package session

import "fmt"

// Status is the administrative state of a session.
type Status string

// Session statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Session scopes a cohort of projects and its duplicate policy.
// Sessions are managed elsewhere; this service only reads them.
type Session struct {
	id         string
	status     Status
	autoReject bool
	threshold  float64 // percent, 0..100
}

// New validates and creates a Session.
func New(id string, status Status, autoReject bool, threshold float64) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("session id is required")
	}
	if threshold < 0 || threshold > 100 {
		return Session{}, fmt.Errorf("threshold must be between 0 and 100, got %g", threshold)
	}
	return Session{id: id, status: status, autoReject: autoReject, threshold: threshold}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status returns the session status.
func (s *Session) Status() Status { return s.status }

// AutoReject reports whether near-duplicates are rejected automatically.
func (s *Session) AutoReject() bool { return s.autoReject }

// Threshold returns the similarity threshold in percent.
func (s *Session) Threshold() float64 { return s.threshold }

// IsActive reports whether submissions are accepted.
func (s *Session) IsActive() bool { return s.status == StatusActive }

// ShouldReject reports whether a submission whose best match scored
// similarity must be rejected. Equality with the threshold is not a rejection.
func (s *Session) ShouldReject(similarity float64) bool {
	return s.autoReject && similarity > s.threshold/100
}
