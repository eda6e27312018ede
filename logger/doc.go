// Package logger provides structured logging for batchkit built on zerolog.
//
// All batchkit packages log through this package so that batch runs, stream
// delivery, and registry sweeps share one consistent output format. Callers
// embedding batchkit can install their own logger via SetGlobal, or pass
// per-component loggers created with New.
package logger
