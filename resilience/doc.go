// Package resilience provides retry with exponential backoff.
//
// The batch engine uses it around bulk chunk calls: a failing bulk call is
// retried up to MaxAttempts times before the engine degrades the chunk to
// per-item processing.
package resilience
