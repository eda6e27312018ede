// Package stream provides per-session, in-process publish/subscribe of
// typed processing events.
//
// A Stream delivers events synchronously and in emission order to every
// registered subscriber. Subscriber failures are isolated: a panicking or
// slow callback is logged and skipped without affecting delivery to other
// subscribers or future events. An idle stream emits periodic heartbeat
// events until it completes or is disposed.
//
// The process-wide Registry maps session identifiers to streams and
// reclaims sessions that have been inactive longer than the configured
// session timeout.
package stream
