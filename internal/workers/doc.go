/*
Package workers sizes and runs the bounded worker pools used for thumbnail
prefetching and batch upscaling.

# Sizing

Count and its ForCPU/ForIO/ForMixed helpers derive a worker count from
GOMAXPROCS rather than runtime.NumCPU, so container CPU limits are honoured:

	numWorkers := workers.ForMixed(8) // thumbnail decode + resize, max 8

Operators can pin the count with the UPSCALE_WORKERS environment variable.
The limit passed by the caller still applies.

# Running

Run fans a slice of items out over an errgroup.Group limited to n
goroutines and blocks until they finish:

	err := workers.Run(ctx, workers.ForMixed(8), paths, func(ctx context.Context, p string) {
	    _, _ = thumbs.Get(p)
	})

Cancelling ctx stops feeding new items; items already handed to a worker
run to completion.
*/
package workers
