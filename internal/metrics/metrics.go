// Package metrics declares the Prometheus collectors exported at /metrics.
//
// Collectors live on the default registry and are registered once in init,
// so any number of servers built in one process (tests) share them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"},
	)

	UsersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "openworld",
		Name:      "users_registered_total",
		Help:      "Accounts created, by password registration or GitHub sign-in",
	})
	ProjectsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "openworld",
		Name:      "projects_created_total",
		Help:      "Projects added to the catalog",
	})
	ProjectStars = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openworld",
		Name:      "project_stars_total",
		Help:      "Star requests, by whether the id matched a project",
	}, []string{"matched"})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, UsersRegistered, ProjectsCreated, ProjectStars)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
