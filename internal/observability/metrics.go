package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// PageLoads counts feed page loads by kind (first|next) and result.
	PageLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicfeed_page_loads_total",
		Help: "Feed page loads by kind and result",
	}, []string{"kind", "result"})

	// Mutations counts optimistic mutations by kind and how they settled.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicfeed_mutations_total",
		Help: "Optimistic mutations by kind and settle result",
	}, []string{"kind", "result"})

	// SessionExpirations counts authenticated -> expired transitions.
	SessionExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicfeed_session_expirations_total",
		Help: "Number of times the session guard observed an expired session",
	})

	// APIRequestDuration records feed API call latency by route and status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicfeed_api_request_duration_seconds",
		Help:    "Feed API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicfeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementEvents counts engagement events handed to the publisher.
	EngagementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicfeed_engagement_events_total",
		Help: "Engagement events published by kind and result",
	}, []string{"kind", "result"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
