package log

// NoOp is a no-op Logger, used by tests and by components constructed
// without an explicit logger.
type NoOp struct{}

// NewNoOp returns a Logger that discards everything.
func NewNoOp() Logger { return NoOp{} }

func (NoOp) With(fields ...interface{}) Logger             { return NoOp{} }
func (NoOp) Trace(msg string, fields ...interface{})       {}
func (NoOp) Debug(msg string, fields ...interface{})       {}
func (NoOp) Info(msg string, fields ...interface{})        {}
func (NoOp) Warn(msg string, fields ...interface{})        {}
func (NoOp) Error(msg string, fields ...interface{})       {}
func (NoOp) Crit(msg string, fields ...interface{})        {}
func (NoOp) Sync() error                                   { return nil }
