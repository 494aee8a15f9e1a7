package validation

import "github.com/go-logr/logr"

// Log pairs a Result with a logr.Logger: every finding added through Log is
// both accumulated and (if the logger's sink isn't nil) emitted immediately,
// so long-running validation runs can be observed before they finish.
type Log struct {
	*Result
	Logger logr.Logger
}

// NewLog returns a Log backed by a fresh Result.
func NewLog(l logr.Logger) Log {
	return Log{Result: &Result{}, Logger: l}
}

// WithValues returns a Log that attaches keysVals to every message logged
// through it, sharing the same underlying Result.
func (l Log) WithValues(keysVals ...any) Log {
	return Log{Result: l.Result, Logger: l.Logger.WithValues(keysVals...)}
}

// WithName returns a Log whose logger is scoped with name.
func (l Log) WithName(name string) Log {
	return Log{Result: l.Result, Logger: l.Logger.WithName(name)}
}

func (l *Log) logIssue(kind string, err error) {
	if l.Logger.GetSink() == nil {
		return
	}
	vals := []any{"severity", kind}
	if issue, ok := err.(*Issue); ok && issue.Code() != nil {
		vals = append(vals, "code", issue.Code().Code)
	}
	l.Logger.Info(err.Error(), vals...)
}

// AddFatal records a fatal error and logs it at info level (fatal in this
// accumulator doesn't mean "stop"; the caller decides whether to continue
// walking after recording it).
func (l *Log) AddFatal(err error) error {
	if err == nil {
		return nil
	}
	if l.Result == nil {
		l.Result = &Result{}
	}
	l.logIssue("error", err)
	return l.Result.AddFatal(err)
}

// AddWarn records and logs a warning.
func (l *Log) AddWarn(err error) {
	if err == nil {
		return
	}
	if l.Result == nil {
		l.Result = &Result{}
	}
	l.logIssue("warning", err)
	l.Result.AddWarn(err)
}

// AddInfo records and logs an informational notice.
func (l *Log) AddInfo(err error) {
	if err == nil {
		return
	}
	if l.Result == nil {
		l.Result = &Result{}
	}
	l.logIssue("info", err)
	l.Result.AddInfo(err)
}

// AddResult merges another Result's findings, logging each one.
func (l *Log) AddResult(r *Result) {
	if r == nil {
		return
	}
	for _, e := range r.Fatal() {
		l.logIssue("error", e)
	}
	for _, e := range r.Warn() {
		l.logIssue("warning", e)
	}
	for _, e := range r.Info() {
		l.logIssue("info", e)
	}
	if l.Result == nil {
		l.Result = r
		return
	}
	l.Result.Merge(r)
}
