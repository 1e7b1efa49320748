// ABOUTME: Request logging and prometheus instrumentation middleware
// ABOUTME: Labels use the chi route pattern, never the raw path

package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/helplane/helplane/internal/metrics"
)

// instrument logs each request and records duration and count metrics.
// Metric labels use the matched route pattern so path parameters do not
// explode the cardinality.
func instrument(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			elapsed := time.Since(start)
			status := ww.Status()

			code := strconv.Itoa(status)
			metrics.RequestDuration.WithLabelValues(r.Method, pattern, code).Observe(elapsed.Seconds())
			metrics.RequestsTotal.WithLabelValues(r.Method, pattern, code).Inc()

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds())
		})
	}
}
