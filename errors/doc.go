// Package errors provides unified error handling for batchkit.
//
// It distinguishes expected operational failures (item and chunk failures,
// which the batch engine captures as data) from API misuse (invalid batch
// sizes, state-machine transition violations, unknown sessions, subscriber
// capacity), which are surfaced synchronously to the caller as *AppError
// values with machine-readable codes.
package errors
