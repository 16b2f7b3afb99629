// Package main provides the entry point for upscale-viewer.
//
// upscale-viewer displays images and swaps in a super-resolved version of
// each one once inference completes. Upscaled results are written to a disk
// cache keyed by a fingerprint of the source path, so every image goes
// through the model at most once.
//
// # Commands
//
//   - upscale: upscale files into the cache, with a progress bar
//   - view: walk through images, showing the source and then the upscaled result
//   - thumbs: build thumbnails for a directory into the in-memory LRU
//   - cache: inspect, verify or clear the disk cache and its manifest
//   - settings: show or change the persisted settings file
//   - version: print build information
//
// # Background Services
//
// While a command runs, these goroutines may be active:
//
//   - Inference runner: one goroutine per in-flight upscale task
//   - Memory monitor: pauses new inference while heap usage is high
//   - Metrics collector: refreshes cache gauges every 30 seconds
//   - Status server: health, stats and Prometheus endpoints (when --metrics-addr is set)
//
// # Environment Variables
//
//   - UPSCALE_SETTINGS: settings file path (default: settings.json under the user config dir)
//   - CACHE_DIR, MODEL_PATH, UPSCALE_BACKEND, UPSCALE_COMMAND, SEQUENTIAL_UPSCALE:
//     override the matching settings for one run without saving them
//   - MANIFEST_ENABLED: record cache writes in SQLite (default: true)
//   - VIPS_ENABLED: use libvips for decoding (default: true)
//   - METRICS_ADDR: status server listen address
//   - LOG_LEVEL: debug, info, warn or error
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: Go heap limit
//
// # Graceful Shutdown
//
// SIGINT and SIGTERM cancel the command context. Tasks that are already
// running finish, pending requests are dropped, and then the status server,
// memory monitor, libvips and the manifest are closed in that order.
//
// # Build Requirements
//
// CGO is required for SQLite and libvips:
//
//	go build -o upscale-viewer ./cmd/upscale-viewer
//
// The realesrgan backend additionally needs the model runner on PATH and
// the weights file named by the model_path setting.
//
// # Related Packages
//
//   - [upscale-viewer/internal/cli]: command definitions
//   - [upscale-viewer/internal/diskcache]: persistent upscale cache
//   - [upscale-viewer/internal/queue]: sequential upscale queue
//   - [upscale-viewer/internal/thumbcache]: thumbnail LRU
//   - [upscale-viewer/internal/upscaler]: inference backends
//   - [upscale-viewer/internal/viewer]: display session
package main
