// Package log provides the leveled, structured logger interface used
// throughout splinter-go, grounded on the teacher's log/ package: a thin
// geth-style interface in front of zap so call sites never import zap
// directly.
package log

// Logger is implemented by every logging backend used in this module.
type Logger interface {
	With(fields ...interface{}) Logger

	Trace(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Crit(msg string, fields ...interface{})

	Sync() error
}
