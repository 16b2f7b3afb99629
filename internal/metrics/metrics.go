package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Disk cache metrics
var (
	DiskCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_disk_cache_requests_total",
			Help: "Disk cache lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "corrupt", "shared"
	)

	DiskCacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_disk_cache_writes_total",
			Help: "Disk cache entry writes by status",
		},
		[]string{"status"}, // "success", "error"
	)

	DiskCacheReadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upscale_viewer_disk_cache_read_duration_seconds",
			Help:    "Time to decode a cached upscaled image",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	DiskCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_disk_cache_size_bytes",
			Help: "Total size of upscaled cache entries on disk",
		},
	)

	DiskCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_disk_cache_entries",
			Help: "Number of upscaled cache entries on disk",
		},
	)

	ManifestEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_manifest_entries",
			Help: "Cache entries recorded in the manifest database",
		},
	)

	ManifestHits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_manifest_hits",
			Help: "Total cache hits recorded in the manifest database",
		},
	)
)

// Manifest database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_db_query_total",
			Help: "Total number of manifest database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscale_viewer_db_query_duration_seconds",
			Help:    "Manifest database query duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_db_connections_open",
			Help: "Number of open manifest database connections",
		},
	)
)

// Thumbnail (memory LRU) metrics
var (
	ThumbnailCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_thumbnail_cache_requests_total",
			Help: "Thumbnail LRU lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "error"
	)

	ThumbnailCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscale_viewer_thumbnail_cache_evictions_total",
			Help: "Entries evicted from the thumbnail LRU",
		},
	)

	ThumbnailCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_thumbnail_cache_entries",
			Help: "Entries currently held by thumbnail LRUs",
		},
	)

	ThumbnailLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upscale_viewer_thumbnail_load_duration_seconds",
			Help:    "Time to decode and scale one thumbnail",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// Inference metrics
var (
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscale_viewer_inference_duration_seconds",
			Help:    "Super-resolution inference duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)

	InferenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_inference_total",
			Help: "Inference calls by backend and status",
		},
		[]string{"backend", "status"}, // status: "success", "error"
	)
)

// Task and queue metrics
var (
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_upscale_tasks_total",
			Help: "Finished upscale tasks by terminal state",
		},
		[]string{"state"}, // "succeeded", "failed"
	)

	TasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_upscale_tasks_running",
			Help: "Upscale tasks currently in the running state",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_upscale_queue_depth",
			Help: "Paths waiting in the sequential upscale queue",
		},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscale_viewer_stale_results_discarded_total",
			Help: "Upscale results dropped because a newer image was displayed",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscale_viewer_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after stale NFS handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_filesystem_stale_errors_total",
			Help: "ESTALE errors seen by filesystem operations",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_memory_paused",
			Help: "Whether inference is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscale_viewer_memory_gc_pauses_total",
			Help: "Times memory pressure paused inference and forced a GC",
		},
	)
)

// Status server metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_viewer_http_requests_total",
			Help: "Status server requests by method, path and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscale_viewer_http_request_duration_seconds",
			Help:    "Status server request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_viewer_http_requests_in_flight",
			Help: "Status server requests being served",
		},
	)
)
