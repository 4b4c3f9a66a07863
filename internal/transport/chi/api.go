package chi

import "time"

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeMalformedCSV           ErrorCode = "malformed_csv"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeSessionInactive        ErrorCode = "session_inactive"
	ErrorCodeSessionNotFound        ErrorCode = "session_not_found"
	ErrorCodeProjectNotFound        ErrorCode = "project_not_found"
	ErrorCodePayloadTooLarge        ErrorCode = "payload_too_large"
	ErrorCodeRateLimited            ErrorCode = "rate_limited"
	ErrorCodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AddProjectRequest is the body of POST /add_project/.
type AddProjectRequest struct {
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	SessionID string `json:"session_id"`
	CreatorID string `json:"creator_id,omitempty"`
}

// AddProjectResponse is returned for a stored submission.
type AddProjectResponse struct {
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// BulkAddResponse is returned after a bulk import.
type BulkAddResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// UpdateProjectRequest is the body of PUT /update_project.
type UpdateProjectRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// SimilarProject is one entry of GET /get_similar_projects.
type SimilarProject struct {
	ID               string  `json:"_id"`
	Title            string  `json:"title"`
	Abstract         string  `json:"abstract"`
	CosineSimilarity float64 `json:"cosineSimilarity"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt time.Time    `json:"period_start_at"`
	PeriodEndAt   time.Time    `json:"period_end_at"`
	Provider      string       `json:"provider"`
	Tokens        int64        `json:"tokens"`
	Budget        BudgetStatus `json:"budget"`
}

// BudgetStatus describes the token budget of a usage window.
// TokensLimit 0 means unlimited; TokensRemaining is then -1.
type BudgetStatus struct {
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
	ResetsAt        time.Time `json:"resets_at"`
}
