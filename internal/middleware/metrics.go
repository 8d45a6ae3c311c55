package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/openworld/internal/metrics"
)

// unmatchedRoute labels requests no route matched, so arbitrary paths
// cannot blow up the label cardinality.
const unmatchedRoute = "unmatched"

// Metrics records a request count and latency per route.
//
// The route label is chi's pattern ("/api/projects/{id}/star"), not the raw
// path, so every project id shares one series. The pattern is only complete
// after routing, which is why it is read after next.ServeHTTP returns.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPLatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
