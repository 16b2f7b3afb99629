// Package logging provides a simple leveled logging interface for the
// upscale viewer.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions (including non-fatal upscale failures)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true. Output goes through a log/slog tint handler that only emits
// colour codes when writing to a terminal.
package logging
