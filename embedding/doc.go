// Package embedding specializes the batch engine for bulk vector
// generation.
//
// Embedding providers charge per call, not per text, so chunks are always
// issued as bulk EmbedTexts calls. The provider ceiling of 2048 texts per
// call is enforced by clamping, and a bulk call that keeps failing after
// retries degrades to per-text EmbedText calls for that chunk only.
package embedding
