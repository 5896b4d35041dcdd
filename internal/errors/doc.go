// Package apperrors defines structured application error types for the
// fan-out harness, allowing a clear distinction between error kinds
// (invalid arguments, spawn failures, abnormal worker terminations, timeouts)
// and mapping each kind to a process exit code.
//
// Error Wrapping Guidelines:
// This package follows Go's error wrapping conventions using fmt.Errorf with %w.
// Error types that carry a cause implement Unwrap(), and kind-bearing types
// implement Is() against the package sentinels so errors.Is works on either.
package apperrors
