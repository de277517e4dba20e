// Package metrics provides Prometheus metrics for monitoring
package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecogarden_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecogarden_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecogarden_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecogarden_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "table"},
	)

	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "table"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecogarden_cache_size",
			Help: "Current cache size (items)",
		},
		[]string{"cache"},
	)

	// Scheduler metrics
	SchedulerTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_scheduler_tasks_total",
			Help: "Total number of scheduled tasks executed",
		},
		[]string{"task", "status"},
	)

	SchedulerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecogarden_scheduler_task_duration_seconds",
			Help:    "Scheduled task duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"task"},
	)

	SchedulerLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecogarden_scheduler_last_run_timestamp",
			Help: "Timestamp of last task run",
		},
		[]string{"task"},
	)

	// Authentication metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"method", "status"},
	)

	// Weather provider metrics
	WeatherRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecogarden_weather_requests_total",
			Help: "Total upstream weather requests by lookup kind and outcome",
		},
		[]string{"lookup", "outcome"},
	)

	WeatherUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecogarden_weather_upstream_duration_seconds",
			Help:    "Upstream weather provider latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"lookup"},
	)

	// Application metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecogarden_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_date", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecogarden_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	SystemGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecogarden_system_goroutines",
			Help: "Number of goroutines",
		},
	)
)

var (
	initOnce  sync.Once
	startTime time.Time
)

// Init records build information and starts the uptime updater
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		startTime = time.Now()
		AppInfo.WithLabelValues(version, commit, buildDate, runtime.Version()).Set(1)
		go updateMetrics()
	})
}

// updateMetrics periodically updates uptime and runtime gauges
func updateMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		AppUptime.Set(time.Since(startTime).Seconds())
		SystemGoroutines.Set(float64(runtime.NumGoroutine()))
	}
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueriesTotal.WithLabelValues(operation, table).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// UpdateCacheSize updates the item count of a cache
func UpdateCacheSize(cache string, items int) {
	CacheSize.WithLabelValues(cache).Set(float64(items))
}

// RecordSchedulerTask records scheduler task execution
func RecordSchedulerTask(task, status string, duration time.Duration) {
	SchedulerTasksTotal.WithLabelValues(task, status).Inc()
	SchedulerTaskDuration.WithLabelValues(task).Observe(duration.Seconds())
	SchedulerLastRun.WithLabelValues(task).SetToCurrentTime()
}

// RecordAuthAttempt records an authentication attempt
func RecordAuthAttempt(method, status string) {
	AuthAttempts.WithLabelValues(method, status).Inc()
}

// RecordWeatherRequest records one upstream weather lookup
func RecordWeatherRequest(lookup, outcome string, duration time.Duration) {
	WeatherRequestsTotal.WithLabelValues(lookup, outcome).Inc()
	if duration > 0 {
		WeatherUpstreamDuration.WithLabelValues(lookup).Observe(duration.Seconds())
	}
}
