package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/metrics"
)

// RouterOptions configures the HTTP router.
type RouterOptions struct {
	APIKeys        []string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter mounts the API on a chi router. Project routes answer both with
// and without the trailing slash.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedHeaders := []string{"X-Custom-Header", "Content-Type"}
	if len(opts.APIKeys) > 0 {
		allowedHeaders = append(allowedHeaders, "Authorization")
	}

	if len(opts.AllowedOrigins) == 0 {
		logger.Warn("No allowed origins configured, CORS accepts any origin")
	}

	// Recovery sits inside accessLog so panics carry the request id and
	// still produce an access line.
	r := gochi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(accessLog(logger))
	r.Use(recoverJSON(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   allowedHeaders,
		AllowCredentials: true,
	}))
	r.Use(metrics.Middleware())

	// Probes and scrapes stay reachable without a key.
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r gochi.Router) {
		r.Use(requireAPIKey(opts.APIKeys))

		both := func(method, path string, h http.HandlerFunc) {
			r.Method(method, path, h)
			r.Method(method, path+"/", h)
		}
		both(http.MethodPost, "/add_project", s.AddProject)
		both(http.MethodPost, "/bulk_add_projects", s.BulkAddProjects)
		both(http.MethodPut, "/update_project", s.UpdateProject)
		both(http.MethodGet, "/get_similar_projects/{project_id}/{k}", s.GetSimilarProjects)
		r.Get("/usage", s.GetUsage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}
