package runner

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/milwrite/botwatch/internal/classify"
	"github.com/milwrite/botwatch/internal/domain"
	"github.com/milwrite/botwatch/internal/session"
)

// recordCore feeds the supervisor's own warnings and errors into the
// session's collections so they show up in the report. It is teed next to
// the console core and keeps its own level, so a quiet console does not
// hide faults from the report.
type recordCore struct {
	zapcore.LevelEnabler
	tracker *session.Tracker
	clock   clock.Clock
}

func withRecorder(logger *zap.Logger, tracker *session.Tracker, clk clock.Clock) *zap.Logger {
	rc := recordCore{LevelEnabler: zapcore.WarnLevel, tracker: tracker, clock: clk}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, rc)
	}))
}

func (c recordCore) With([]zapcore.Field) zapcore.Core { return c }

func (c recordCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c recordCore) Write(e zapcore.Entry, _ []zapcore.Field) error {
	ts := c.clock.Now()
	if e.Level >= zapcore.ErrorLevel {
		c.tracker.Record(domain.ErrorEvent{Timestamp: ts, Raw: e.Message, Severity: classify.SeverityOf(e.Message)})
		return nil
	}
	c.tracker.Record(domain.Warning{Timestamp: ts, Raw: e.Message})
	return nil
}

func (c recordCore) Sync() error { return nil }
