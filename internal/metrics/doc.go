// Package metrics provides Prometheus instrumentation for the upscale viewer.
//
// All metrics are prefixed with "upscale_viewer_" and registered through
// promauto, so they exist as soon as the package is imported.
//
// # Metric Categories
//
// ## Disk Cache
//   - DiskCacheRequests: lookups by outcome (hit, miss, corrupt, shared)
//   - DiskCacheWrites: entry writes by status
//   - DiskCacheReadDuration: decode time of cached entries
//   - DiskCacheSizeBytes / DiskCacheEntries: on-disk footprint, published by Collector
//   - ManifestEntries / ManifestHits: manifest database totals
//   - DBQueryTotal / DBQueryDuration / DBConnectionsOpen: manifest queries
//
// ## Thumbnails
//   - ThumbnailCacheRequests, ThumbnailCacheEvictions, ThumbnailCacheEntries
//   - ThumbnailLoadDuration: decode + scale time on a miss
//
// ## Inference, Tasks and Queue
//   - InferenceDuration / InferenceTotal by backend
//   - TasksTotal by terminal state, TasksRunning
//   - QueueDepth, StaleResultsDiscarded
//
// ## Filesystem and Memory
//   - Filesystem operation and NFS retry counters (see NewFilesystemObserver)
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// ## Status Server
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// Besides Prometheus, Latencies keeps DDSketch quantiles per operation for
// the `cache stats` command.
package metrics
