// Package task runs single upscale jobs off the interactive goroutine.
//
// A Task moves from created to running to exactly one of succeeded or
// failed, and hands its Result to a callback once. The disk cache is
// consulted first; on a miss the source is decoded, passed through the
// enhancer and persisted. Failures are classified as ErrSourceUnreadable,
// *upscaler.InferenceError or a cache error and never escape as panics.
package task
