/*
Package filesystem provides resilient filesystem operations for the upscale
cache and the source images it is derived from.

Source libraries and cache directories often live on NFS. StatWithRetry and
OpenWithRetry wrap os.Stat and os.Open with exponential backoff on ESTALE
(errno 116); every other error fails immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

WriteFileAtomic writes through a temporary sibling and renames it into place,
so a concurrent reader either sees the previous file or the complete new one.

Metrics are reported through an Observer registered with SetObserver; the
metrics package supplies the Prometheus-backed implementation. Volume labels
come from a VolumeResolver (longest-prefix match on absolute paths).
*/
package filesystem
