// Package memory keeps upscaling inside the process's memory budget.
//
// # Configuration
//
// Go does not derive GOMEMLIMIT from cgroup limits. Call [ConfigureFromEnv]
// early in main:
//
//   - GOMEMLIMIT: standard Go variable; takes precedence when set.
//   - MEMORY_LIMIT: container memory limit in bytes, e.g. from the
//     Kubernetes Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between
//     0.0 and 1.0 (default 0.80). Lower it when the external super-resolution
//     process shares the container.
//
// # Inference gating
//
// A decoded source at scale 4 produces an output with sixteen times the
// pixels, so upscale tasks call [Monitor.Wait] before starting inference:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.Wait(ctx); err != nil {
//	    return err
//	}
//
// The monitor pauses when heap usage crosses CriticalWaterMark and resumes
// once it falls below HighWaterMark.
package memory
