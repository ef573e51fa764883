// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine metrics
	KMeansIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melophile_kmeans_iterations",
			Help:    "Iterations per K-Means fit",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
		},
		[]string{"converged"},
	)

	SilhouetteScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "melophile_silhouette_score",
			Help:    "Average silhouette of recorded fits",
			Buckets: prometheus.LinearBuckets(-1, 0.2, 11),
		},
	)

	SelectedK = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "melophile_selected_k",
			Help:    "Non-empty cluster count of the selected fit",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melophile_recommendation_duration_seconds",
			Help:    "Duration of enhance and generate operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "enhance", "generate"
	)

	RecommendationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melophile_recommendation_failures_total",
			Help: "Total number of failed enhance and generate operations",
		},
		[]string{"operation", "reason"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melophile_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "melophile_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Spotify metrics
	SpotifyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "melophile_spotify_requests_total",
			Help: "Total number of Spotify API calls by outcome",
		},
		[]string{"operation", "outcome"}, // "success", "failure", "rejected"
	)

	SpotifyBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "melophile_spotify_breaker_state",
			Help: "Spotify circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordFit records one K-Means fit.
func RecordFit(iterations int, converged bool) {
	KMeansIterations.WithLabelValues(strconv.FormatBool(converged)).Observe(float64(iterations))
}

// RecordRecommendation records the duration of an operation and, when
// reason is not empty, a failure.
func RecordRecommendation(operation string, start time.Time, reason string) {
	RecommendationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if reason != "" {
		RecommendationFailures.WithLabelValues(operation, reason).Inc()
	}
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, route, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}
