// Package batch executes large, partitionable workloads concurrently.
//
// Items are split into contiguous chunks of at most BatchSize items and
// dispatched onto a bounded worker pool. Results come back index-aligned
// with the input regardless of completion order, and a failing item never
// removes or reorders its siblings — failures are data, not panics.
//
// Two execution modes share the same partitioning and ordering contract:
//
//   - Run: each item is processed independently (per-item mode).
//   - RunBulk: each chunk is sent as one remote call (bulk mode). A failing
//     bulk call is retried, then degraded to sequential per-item calls for
//     that chunk only.
//
// The engine knows nothing about progress tracking or event streaming; the
// optional ChunkFunc hook is the single integration point for both.
package batch
