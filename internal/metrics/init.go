package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(backends []string) {
	for _, outcome := range []string{"hit", "miss", "corrupt", "shared"} {
		DiskCacheRequests.WithLabelValues(outcome)
	}
	for _, status := range []string{"success", "error"} {
		DiskCacheWrites.WithLabelValues(status)
	}

	for _, outcome := range []string{"hit", "miss", "error"} {
		ThumbnailCacheRequests.WithLabelValues(outcome)
	}

	for _, b := range backends {
		InferenceDuration.WithLabelValues(b)
		InferenceTotal.WithLabelValues(b, "success")
		InferenceTotal.WithLabelValues(b, "error")
	}

	for _, state := range []string{"succeeded", "failed"} {
		TasksTotal.WithLabelValues(state)
	}

	volumes := []string{"source", "cache", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"read", "write", "stat"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
