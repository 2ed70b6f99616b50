// Package obslog is the ambient logging shim every scheduling package in
// this module takes as an option. It mirrors the teacher's lg.FromContext
// wrapper around go.uber.org/zap, minus the context-scoping (none of this
// module's operations are per-request, so there is no context to scope a
// logger to) — callers attach one *zap.Logger per scheduler instance.
package obslog

import "go.uber.org/zap"

// Logger is the minimal surface every package here depends on. It is
// satisfied directly by *zap.Logger.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Nop is the default logger: silent, zero overhead, used when a caller
// does not attach one.
func Nop() Logger {
	return zap.NewNop()
}

// Resolve returns l if non-nil, otherwise the silent default.
func Resolve(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
