package metrics

import (
	"time"

	"upscale-viewer/internal/filesystem"
)

// fsObserver feeds filesystem events into the Prometheus vectors. Successful
// writes to the cache volume are also tracked as "cache_write" latencies so
// they show up next to cache_read and inference in the CLI summary.
type fsObserver struct {
	latencies *LatencyTracker
}

// NewFilesystemObserver returns the observer installed with
// filesystem.SetObserver when the status server is enabled.
func NewFilesystemObserver() filesystem.Observer {
	return newFilesystemObserver(Latencies)
}

func newFilesystemObserver(lt *LatencyTracker) *fsObserver {
	return &fsObserver{latencies: lt}
}

func (o *fsObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
		return
	}
	if volume == "cache" && operation == "write" && o.latencies != nil {
		o.latencies.Record("cache_write", time.Duration(durationSeconds*float64(time.Second)))
	}
}

func (o *fsObserver) ObserveRetryAttempt(retryOp, volume string) {
	FilesystemRetryAttempts.WithLabelValues(retryOp, volume).Inc()
}

func (o *fsObserver) ObserveRetrySuccess(retryOp, volume string) {
	FilesystemRetrySuccess.WithLabelValues(retryOp, volume).Inc()
}

func (o *fsObserver) ObserveRetryFailure(retryOp, volume string) {
	FilesystemRetryFailures.WithLabelValues(retryOp, volume).Inc()
}

func (o *fsObserver) ObserveStaleError(retryOp, volume string) {
	FilesystemStaleErrors.WithLabelValues(retryOp, volume).Inc()
}
