// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Settings come from the settings file (see package settings), after which
// environment variables override individual keys. A .env file in the
// working directory is loaded first by [LoadEnvFile].
//
//   - UPSCALE_SETTINGS: settings file (default: <user config dir>/upscale-viewer/settings.json)
//   - CACHE_DIR: cache root; upscaled images go to CACHE_DIR/upscaled
//   - MODEL_PATH: Real-ESRGAN weights file
//   - UPSCALE_BACKEND: realesrgan or lanczos
//   - UPSCALE_COMMAND: executable that runs the model
//   - SEQUENTIAL_UPSCALE: run at most one upscale at a time
//   - MANIFEST_ENABLED: keep the SQLite manifest (default: true)
//   - METRICS_ADDR: address for the Prometheus endpoint (default: disabled)
//   - LOG_LEVEL / DEBUG: logging level
//   - UPSCALE_WORKERS: worker count for thumbnail prefetch
//   - MEMORY_LIMIT / MEMORY_RATIO / GOMEMLIMIT: Go heap limit
//
// # Directory Setup
//
// The upscaled cache directory is required and must be writable. The
// manifest database is optional; if its directory cannot be written the
// manifest is disabled and the cache keeps working without it.
package startup
