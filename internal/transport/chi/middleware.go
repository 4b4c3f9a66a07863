package chi

import (
	"errors"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/domain"
	logpkg "github.com/kailas-cloud/simproj/internal/logger"
)

// recoverJSON turns a handler panic into a 500 with the usual error body.
// http.ErrAbortHandler is re-raised so net/http can drop the connection quietly.
// Mounted after accessLog, it logs through the request-scoped logger.
func recoverJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rvr)
				}
				logpkg.From(r.Context(), logger).Error("handler panicked",
					zap.Any("panic", rvr),
					zap.Stack("stack"),
				)
				writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one summary line per request. It runs after RequestID so
// the id is echoed in X-Request-ID and attached to the request-scoped logger.
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			id := chiMiddleware.GetReqID(r.Context())
			if id != "" {
				w.Header().Set("X-Request-ID", id)
			}

			scoped := logger.With(zap.String("request_id", id))
			ctx, usage := domain.WithRequestUsage(logpkg.With(r.Context(), scoped))
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			scoped.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(began)),
				zap.String("remote", r.RemoteAddr),
				zap.Int("bytes_out", ww.BytesWritten()),
				zap.Bool("embedded", usage.Embedded()),
				zap.Int64("embedding_tokens", usage.Tokens()),
			)
		})
	}
}
