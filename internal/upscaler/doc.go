// Package upscaler adapts super-resolution backends to a single Enhancer
// interface.
//
// The backend set is closed: Real-ESRGAN runs as an external process fed
// through temporary PNG files, and Lanczos resamples in-process. The
// process is called with --input, --output, --model, --scale and an
// optional --device. Runners that tile also take --tile and --pre_pad,
// sent only when Config.TuningFlags is set. Every failure surfaces as
// *InferenceError and no call is retried.
package upscaler
