package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	"github.com/kailas-cloud/simproj/internal/domain/search/request"
	"github.com/kailas-cloud/simproj/internal/domain/search/result"
	domusage "github.com/kailas-cloud/simproj/internal/domain/usage"
	logpkg "github.com/kailas-cloud/simproj/internal/logger"
	healthuc "github.com/kailas-cloud/simproj/internal/usecase/health"
	projectuc "github.com/kailas-cloud/simproj/internal/usecase/project"
)

// Multipart parts above this size are spooled to disk by net/http.
const multipartMemory = 8 << 20

// maxJSONBody caps add and update bodies: title and abstract at their limit,
// room for JSON escaping, plus the small fields.
const maxJSONBody = 4*domproj.MaxTextBytes + 4<<10

// ProjectService is the submission, update and similarity use case.
type ProjectService interface {
	Submit(ctx context.Context, in projectuc.SubmitInput) (domproj.Project, error)
	Update(ctx context.Context, id, title, abstract string) error
	Similar(ctx context.Context, req request.Similar) ([]result.Match, error)
}

// BulkImporter is the CSV import use case.
type BulkImporter interface {
	Import(ctx context.Context, sessionID string, r io.Reader) (int, error)
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports embedding token consumption.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	projects       ProjectService
	bulk           BulkImporter
	health         HealthChecker
	usage          UsageReporter
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes caps bulk upload bodies.
func NewServer(
	projects ProjectService, bulk BulkImporter, health HealthChecker, usage UsageReporter,
	maxUploadBytes int64, logger *zap.Logger,
) *Server {
	s := &Server{
		projects:       projects,
		bulk:           bulk,
		health:         health,
		usage:          usage,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		uploadTooLargeHandler,
		sentinelHandler(domain.ErrMalformedCSV, http.StatusBadRequest, ErrorCodeMalformedCSV, ""),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed, ""),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound,
			"Session not found"),
		sentinelHandler(domain.ErrSessionInactive, http.StatusForbidden, ErrorCodeSessionInactive,
			"Session is not active, please ask admin to activate."),
		sentinelHandler(domain.ErrProjectNotFound, http.StatusNotFound, ErrorCodeProjectNotFound,
			"Project not found"),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited,
			domain.ErrRateLimited.Error()),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, ErrorCodeEmbeddingQuotaExceeded,
			domain.ErrEmbeddingQuotaExceeded.Error()),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError,
			domain.ErrEmbeddingProviderError.Error()),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, ErrorCodeVectorDimMismatch,
			domain.ErrVectorDimMismatch.Error()),
	}
	return s
}

// AddProject handles POST /add_project/.
func (s *Server) AddProject(w http.ResponseWriter, r *http.Request) {
	var req AddProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.projects.Submit(r.Context(), projectuc.SubmitInput{
		Title:     req.Title,
		Abstract:  req.Abstract,
		SessionID: req.SessionID,
		CreatorID: req.CreatorID,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, domain.RequestUsageFrom(r.Context()))
	writeJSON(w, http.StatusCreated, AddProjectResponse{
		ProjectID: p.ID(),
		Status:    p.Status().String(),
	})
}

// BulkAddProjects handles POST /bulk_add_projects/ (multipart: session_id, file).
func (s *Server) BulkAddProjects(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if uploadTooLargeHandler(w, err) {
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "session_id is required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	n, err := s.bulk.Import(r.Context(), sessionID, file)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, domain.RequestUsageFrom(r.Context()))
	writeJSON(w, http.StatusOK, BulkAddResponse{Message: "Projects added successfully", Count: n})
}

// UpdateProject handles PUT /update_project.
func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.projects.Update(r.Context(), req.ProjectID, req.Title, req.Abstract); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, domain.RequestUsageFrom(r.Context()))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Project updated successfully"})
}

// GetSimilarProjects handles GET /get_similar_projects/{project_id}/{k}.
func (s *Server) GetSimilarProjects(w http.ResponseWriter, r *http.Request) {
	var projectID openapi_types.UUID
	if err := bindPathParam(r, "project_id", &projectID); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	var k int
	if err := bindPathParam(r, "k", &k); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	req, err := request.NewSimilar(projectID.String(), k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	matches, err := s.projects.Similar(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SimilarProject, len(matches))
	for i := range matches {
		items[i] = similarToAPI(&matches[i])
	}
	writeJSON(w, http.StatusOK, items)
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	writeJSON(w, http.StatusOK, UsageResponse{
		Period:        string(report.Period()),
		PeriodStartAt: report.PeriodStart(),
		PeriodEndAt:   report.PeriodEnd(),
		Provider:      report.Provider(),
		Tokens:        report.TokensUsed(),
		Budget: BudgetStatus{
			TokensLimit:     report.TokensLimit(),
			TokensRemaining: report.TokensRemaining(),
			IsExhausted:     report.Exhausted(),
			ResetsAt:        report.PeriodEnd(),
		},
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	if report.Status != healthuc.Healthy {
		s.logger.Warn("Health check failing", zap.Strings("checks", healthuc.Failing(report.Checks)))
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func bindPathParam(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return fmt.Errorf("Invalid format for parameter %s: %w", name, err) //nolint:staticcheck // client-facing message
	}
	return nil
}

func similarToAPI(m *result.Match) SimilarProject {
	return SimilarProject{
		ID:               m.ID(),
		Title:            m.Title(),
		Abstract:         m.Abstract(),
		CosineSimilarity: m.Score(),
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage.Embedded() {
		w.Header().Set("X-Embedding-Tokens", strconv.FormatInt(usage.Tokens(), 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// An empty message exposes err itself, which is safe for validation errors only.
func sentinelHandler(sentinel error, status int, code ErrorCode, message string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := message
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

// uploadTooLargeHandler maps a body that hit http.MaxBytesReader to 413.
// decodeBody reads a size-capped JSON body into dst, answering 413 or 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !uploadTooLargeHandler(w, err) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

func uploadTooLargeHandler(w http.ResponseWriter, err error) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) && !errors.Is(err, domain.ErrUploadTooLarge) {
		return false
	}
	msg := domain.ErrUploadTooLarge.Error()
	if mbe != nil {
		msg = fmt.Sprintf("upload exceeds %d bytes", mbe.Limit)
	}
	writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.From(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Info("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
