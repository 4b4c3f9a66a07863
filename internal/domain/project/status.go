package project

import "fmt"

// Status is the review state of a project.
type Status string

// Project statuses.
const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// ParseStatus converts a stored status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown project status %q", s)
	}
}

func (s Status) String() string { return string(s) }
