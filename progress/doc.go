// Package progress tracks multi-stage processing runs per session.
//
// A Tracker owns an ordered set of named stages, each moving through a
// small state machine: pending to in_progress, then to completed or
// failed. Every mutation produces a StageProgress snapshot that is pushed
// to registered observer callbacks, which is how streams and other
// consumers learn about progress without polling.
//
// The Registry maps session identifiers to trackers and reclaims finished
// or abandoned sessions after a timeout.
package progress
