// Package workflow ties the batch engine, event streams and progress
// tracking together into observable multi-stage processing runs.
//
// RunStage and RunStageBulk adapt one batch run to one session: every
// chunk boundary updates the session's progress tracker and emits a
// progress event, item failures surface as error events without aborting
// the run, and stage completion is recorded on both sides.
//
// The Orchestrator sequences a declared list of stages for a session,
// wraps each in a trace span with metrics, aggregates a final summary
// with performance figures and emits the terminal complete event.
package workflow
