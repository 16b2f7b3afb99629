// Package queue serializes upscale requests when the model cannot run
// more than once at a time.
//
// Sequential mode keeps a FIFO of pending paths, deduplicated by path, and
// starts the next one each time a task completes. With sequential mode off
// every request starts at once.
package queue
