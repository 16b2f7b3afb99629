package filesystem

// Observer records filesystem operation metrics. The metrics package
// provides the implementation so filesystem does not import it.
type Observer interface {
	// ObserveOperation records duration and error status for an operation
	// ("stat", "open", "write") on a volume ("source", "cache").
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveStaleError(retryOp, volume string)
}

// nil means metrics are skipped, which is what tests want.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
