package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/simproj/internal/domain"
	domproj "github.com/kailas-cloud/simproj/internal/domain/project"
	"github.com/kailas-cloud/simproj/internal/domain/search/request"
	"github.com/kailas-cloud/simproj/internal/domain/search/result"
	domusage "github.com/kailas-cloud/simproj/internal/domain/usage"
	healthuc "github.com/kailas-cloud/simproj/internal/usecase/health"
	projectuc "github.com/kailas-cloud/simproj/internal/usecase/project"
)

// --- Mocks ---

type mockProjects struct {
	submitFn  func(ctx context.Context, in projectuc.SubmitInput) (domproj.Project, error)
	updateFn  func(ctx context.Context, id, title, abstract string) error
	similarFn func(ctx context.Context, req request.Similar) ([]result.Match, error)
}

func (m *mockProjects) Submit(ctx context.Context, in projectuc.SubmitInput) (domproj.Project, error) {
	return m.submitFn(ctx, in)
}

func (m *mockProjects) Update(ctx context.Context, id, title, abstract string) error {
	return m.updateFn(ctx, id, title, abstract)
}

func (m *mockProjects) Similar(ctx context.Context, req request.Similar) ([]result.Match, error) {
	return m.similarFn(ctx, req)
}

type mockBulk struct {
	importFn func(ctx context.Context, sessionID string, r io.Reader) (int, error)
}

func (m *mockBulk) Import(ctx context.Context, sessionID string, r io.Reader) (int, error) {
	return m.importFn(ctx, sessionID, r)
}

type mockHealth struct{ report healthuc.Report }

type mockUsage struct{ report domusage.Report }

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	if m.report.Period() == "" {
		now := time.Now()
		return domusage.NewReport(period, now, now, "test", 0, 0, -1)
	}
	return m.report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newTestRouter(t *testing.T, p *mockProjects, b *mockBulk, maxUpload int64) http.Handler {
	t.Helper()
	if p == nil {
		p = &mockProjects{}
	}
	if b == nil {
		b = &mockBulk{}
	}
	h := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
		"database": healthuc.CheckOK,
	}}}
	srv := NewServer(p, b, h, &mockUsage{}, maxUpload, zap.NewNop())
	return NewRouter(srv, RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}, Logger: zap.NewNop()})
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// --- add_project ---

func TestAddProject_Created(t *testing.T) {
	id := uuid.NewString()
	var got projectuc.SubmitInput
	p := &mockProjects{submitFn: func(ctx context.Context, in projectuc.SubmitInput) (domproj.Project, error) {
		got = in
		domain.RequestUsageFrom(ctx).Record(12)
		now := time.Now()
		return domproj.Reconstruct(id, in.Title, in.Abstract, domproj.StatusRejected,
			in.SessionID, in.CreatorID, nil, now, now), nil
	}}
	h := newTestRouter(t, p, nil, 0)

	for _, path := range []string{"/add_project/", "/add_project"} {
		body := `{"title":"T","abstract":"A","session_id":"s-1","creator_id":"u-1"}`
		rr := do(t, h, http.MethodPost, path, strings.NewReader(body), "application/json")

		if rr.Code != http.StatusCreated {
			t.Fatalf("%s: status = %d, body = %s", path, rr.Code, rr.Body.String())
		}
		var resp AddProjectResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ProjectID != id || resp.Status != "rejected" {
			t.Errorf("%s: unexpected response %+v", path, resp)
		}
		if got := rr.Header().Get("X-Embedding-Tokens"); got != "12" {
			t.Errorf("%s: X-Embedding-Tokens = %q", path, got)
		}
	}
	if got.SessionID != "s-1" || got.CreatorID != "u-1" || got.Title != "T" {
		t.Errorf("unexpected submit input: %+v", got)
	}
}

func TestAddProject_DomainErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"session not found", fmt.Errorf("get session: %w", domain.ErrSessionNotFound), http.StatusNotFound, "Session not found"},
		{"inactive", domain.ErrSessionInactive, http.StatusForbidden,
			"Session is not active, please ask admin to activate."},
		{"validation", fmt.Errorf("title is required: %w", domain.ErrInvalidInput), http.StatusBadRequest,
			"title is required: invalid input"},
		{"provider", fmt.Errorf("vectorize: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway,
			"embedding provider error"},
		{"quota", domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, "embedding quota exceeded"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "rate limited"},
		{"unknown", errors.New("redis: connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &mockProjects{submitFn: func(context.Context, projectuc.SubmitInput) (domproj.Project, error) {
				return domproj.Project{}, tc.err
			}}
			rr := do(t, newTestRouter(t, p, nil, 0), http.MethodPost, "/add_project/",
				strings.NewReader(`{"title":"T","abstract":"A","session_id":"s"}`), "application/json")

			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if e := decodeError(t, rr); e.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", e.Message, tc.wantMsg)
			}
		})
	}
}

func TestAddProject_BadJSON(t *testing.T) {
	rr := do(t, newTestRouter(t, nil, nil, 0), http.MethodPost, "/add_project/",
		strings.NewReader(`{"title":`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeBadRequest {
		t.Errorf("code = %q", e.Code)
	}
}

func TestJSONBodies_SizeCapped(t *testing.T) {
	called := false
	p := &mockProjects{
		submitFn: func(context.Context, projectuc.SubmitInput) (domproj.Project, error) {
			called = true
			return domproj.Project{}, nil
		},
		updateFn: func(context.Context, string, string, string) error {
			called = true
			return nil
		},
	}
	h := newTestRouter(t, p, nil, 0)
	huge := `{"title":"T","abstract":"` + strings.Repeat("x", maxJSONBody) + `","session_id":"s"}`

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/add_project/"},
		{http.MethodPut, "/update_project"},
	} {
		t.Run(route.path, func(t *testing.T) {
			rr := do(t, h, route.method, route.path, strings.NewReader(huge), "application/json")
			if rr.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("status = %d, want 413", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != ErrorCodePayloadTooLarge {
				t.Errorf("code = %q", e.Code)
			}
		})
	}
	if called {
		t.Error("service must not see an oversized body")
	}
}

// --- bulk_add_projects ---

func multipartBody(t *testing.T, sessionID, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			t.Fatal(err)
		}
	}
	if csv != "" {
		fw, err := mw.CreateFormFile("file", "projects.csv")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(csv))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestBulkAddProjects_OK(t *testing.T) {
	var gotSession, gotCSV string
	b := &mockBulk{importFn: func(_ context.Context, sessionID string, r io.Reader) (int, error) {
		gotSession = sessionID
		data, _ := io.ReadAll(r)
		gotCSV = string(data)
		return 2, nil
	}}
	body, ct := multipartBody(t, "s-9", "title,abstract\na,b\nc,d\n")
	rr := do(t, newTestRouter(t, nil, b, 1<<20), http.MethodPost, "/bulk_add_projects/", body, ct)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp BulkAddResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Message != "Projects added successfully" || resp.Count != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if gotSession != "s-9" || !strings.HasPrefix(gotCSV, "title,abstract") {
		t.Errorf("import got session=%q csv=%q", gotSession, gotCSV)
	}
}

func TestBulkAddProjects_MalformedCSV(t *testing.T) {
	b := &mockBulk{importFn: func(context.Context, string, io.Reader) (int, error) {
		return 0, domain.NewRowError(3, fmt.Errorf("expected 2 columns, got 3: %w", domain.ErrMalformedCSV))
	}}
	body, ct := multipartBody(t, "s-1", "h,h\na,b\na,b,c\n")
	rr := do(t, newTestRouter(t, nil, b, 1<<20), http.MethodPost, "/bulk_add_projects", body, ct)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != ErrorCodeMalformedCSV || !strings.HasPrefix(e.Message, "line 3:") {
		t.Errorf("unexpected error %+v", e)
	}
}

func TestBulkAddProjects_TooLarge(t *testing.T) {
	b := &mockBulk{importFn: func(context.Context, string, io.Reader) (int, error) {
		t.Fatal("import must not run")
		return 0, nil
	}}
	body, ct := multipartBody(t, "s-1", "title,abstract\n"+strings.Repeat("x,y\n", 1000))
	rr := do(t, newTestRouter(t, nil, b, 256), http.MethodPost, "/bulk_add_projects/", body, ct)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413, body = %s", rr.Code, rr.Body.String())
	}
}

func TestBulkAddProjects_MissingParts(t *testing.T) {
	h := newTestRouter(t, nil, nil, 1<<20)

	body, ct := multipartBody(t, "", "h,h\n")
	if rr := do(t, h, http.MethodPost, "/bulk_add_projects/", body, ct); rr.Code != http.StatusBadRequest {
		t.Errorf("missing session: status = %d", rr.Code)
	}
	body, ct = multipartBody(t, "s-1", "")
	if rr := do(t, h, http.MethodPost, "/bulk_add_projects/", body, ct); rr.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/bulk_add_projects/", strings.NewReader("{}"), "application/json"); rr.Code != http.StatusBadRequest {
		t.Errorf("not multipart: status = %d", rr.Code)
	}
}

// --- update_project ---

func TestUpdateProject(t *testing.T) {
	id := uuid.NewString()
	p := &mockProjects{updateFn: func(_ context.Context, gotID, title, abstract string) error {
		if gotID != id {
			return domain.ErrProjectNotFound
		}
		if title != "New" || abstract != "Text" {
			t.Errorf("unexpected update %q %q", title, abstract)
		}
		return nil
	}}
	h := newTestRouter(t, p, nil, 0)

	body := fmt.Sprintf(`{"project_id":%q,"title":"New","abstract":"Text"}`, id)
	rr := do(t, h, http.MethodPut, "/update_project", strings.NewReader(body), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp MessageResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Message != "Project updated successfully" {
		t.Errorf("message = %q", resp.Message)
	}

	body = fmt.Sprintf(`{"project_id":%q,"title":"New","abstract":"Text"}`, uuid.NewString())
	rr = do(t, h, http.MethodPut, "/update_project/", strings.NewReader(body), "application/json")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if e := decodeError(t, rr); e.Message != "Project not found" {
		t.Errorf("message = %q", e.Message)
	}
}

// --- get_similar_projects ---

func TestGetSimilarProjects(t *testing.T) {
	id := uuid.New()
	var gotReq request.Similar
	p := &mockProjects{similarFn: func(_ context.Context, req request.Similar) ([]result.Match, error) {
		gotReq = req
		return []result.Match{
			result.New("a", "A", "aa", 0.91),
			result.New("b", "B", "bb", 0.42),
		}, nil
	}}
	rr := do(t, newTestRouter(t, p, nil, 0), http.MethodGet, "/get_similar_projects/"+id.String()+"/3", http.NoBody, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var items []SimilarProject
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0].ID != "a" || items[0].CosineSimilarity != 0.91 {
		t.Errorf("unexpected items %+v", items)
	}
	if gotReq.ProjectID() != id.String() || gotReq.K() != 3 {
		t.Errorf("request = %s/%d", gotReq.ProjectID(), gotReq.K())
	}
}

func TestGetSimilarProjects_ClampsK(t *testing.T) {
	var gotK int
	p := &mockProjects{similarFn: func(_ context.Context, req request.Similar) ([]result.Match, error) {
		gotK = req.K()
		return nil, nil
	}}
	rr := do(t, newTestRouter(t, p, nil, 0), http.MethodGet,
		"/get_similar_projects/"+uuid.NewString()+"/100000/", http.NoBody, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if gotK != request.MaxK {
		t.Errorf("k = %d, want %d", gotK, request.MaxK)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty result must encode as [], got %s", rr.Body.String())
	}
}

func TestGetSimilarProjects_BadParams(t *testing.T) {
	p := &mockProjects{similarFn: func(context.Context, request.Similar) ([]result.Match, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	h := newTestRouter(t, p, nil, 0)

	for _, path := range []string{
		"/get_similar_projects/not-a-uuid/3",
		"/get_similar_projects/" + uuid.NewString() + "/abc",
		"/get_similar_projects/" + uuid.NewString() + "/0",
		"/get_similar_projects/" + uuid.NewString() + "/-2",
	} {
		if rr := do(t, h, http.MethodGet, path, http.NoBody, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rr.Code)
		}
	}
}

// --- health, cors, fallbacks ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status   healthuc.Status
		wantCode int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			h := &mockHealth{report: healthuc.Report{Status: tc.status, Checks: map[string]healthuc.CheckResult{
				"database": healthuc.CheckOK,
			}}}
			srv := NewServer(&mockProjects{}, &mockBulk{}, h, &mockUsage{}, 0, zap.NewNop())
			rr := do(t, NewRouter(srv, RouterOptions{}), http.MethodGet, "/health", http.NoBody, "")

			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			var resp HealthResponse
			_ = json.NewDecoder(rr.Body).Decode(&resp)
			if resp.Status != string(tc.status) || resp.Checks["database"] != "ok" {
				t.Errorf("unexpected body %+v", resp)
			}
		})
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	h := newTestRouter(t, nil, nil, 0)

	req := httptest.NewRequest(http.MethodOptions, "/add_project/", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}

func TestRouter_RequestIDAndNotFound(t *testing.T) {
	rr := do(t, newTestRouter(t, nil, nil, 0), http.MethodGet, "/nope", http.NoBody, "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	p := &mockProjects{submitFn: func(context.Context, projectuc.SubmitInput) (domproj.Project, error) {
		panic("boom")
	}}
	core, logs := observer.New(zapcore.InfoLevel)
	srv := NewServer(p, &mockBulk{}, &mockHealth{}, &mockUsage{}, 0, zap.NewNop())
	h := NewRouter(srv, RouterOptions{AllowedOrigins: []string{"http://localhost:3000"}, Logger: zap.New(core)})

	rr := do(t, h, http.MethodPost, "/add_project/",
		strings.NewReader(`{"title":"T","abstract":"A","session_id":"s"}`), "application/json")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeInternalError {
		t.Errorf("code = %q", e.Code)
	}

	id := rr.Header().Get("X-Request-ID")
	panics := logs.FilterMessage("handler panicked").All()
	if len(panics) != 1 || id == "" || panics[0].ContextMap()["request_id"] != id {
		t.Errorf("panic log must carry request id %q, got %v", id, panics)
	}
	access := logs.FilterMessage("http_request").All()
	if len(access) != 1 || access[0].ContextMap()["status"] != int64(http.StatusInternalServerError) {
		t.Errorf("expected one access line with status 500, got %v", access)
	}
}

func TestRouter_WarnsWithoutAllowedOrigins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	srv := NewServer(&mockProjects{}, &mockBulk{}, &mockHealth{}, &mockUsage{}, 0, zap.NewNop())
	NewRouter(srv, RouterOptions{Logger: zap.New(core)})

	if logs.FilterMessage("No allowed origins configured, CORS accepts any origin").Len() != 1 {
		t.Errorf("expected CORS warning, got %v", logs.All())
	}
}

// --- usage ---

func TestGetUsage(t *testing.T) {
	start := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	u := &mockUsage{report: domusage.NewReport(domusage.PeriodDay, start, start.AddDate(0, 0, 1), "openai", 900, 1000, 100)}
	srv := NewServer(&mockProjects{}, &mockBulk{}, &mockHealth{}, u, 0, zap.NewNop())
	h := NewRouter(srv, RouterOptions{})

	rr := do(t, h, http.MethodGet, "/usage?period=day", http.NoBody, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp UsageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Period != "day" || resp.Tokens != 900 || resp.Budget.TokensRemaining != 100 || resp.Budget.IsExhausted {
		t.Errorf("unexpected body %+v", resp)
	}
	if !resp.Budget.ResetsAt.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("resets_at = %v", resp.Budget.ResetsAt)
	}

	rr = do(t, h, http.MethodGet, "/usage?period=total", http.NoBody, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown period: status = %d, want 400", rr.Code)
	}
}
