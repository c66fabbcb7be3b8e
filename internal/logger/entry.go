package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is a log line with metric fields (duration_ms, count, dropped, ...)
// added on top of the fields carried by the context logger.
type Entry struct {
	fields Fields
}

// With starts an Entry with the given metric fields.
// Example: logger.With(logger.Fields{logger.FieldCount: n}).Info(ctx, "loaded")
func With(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// With returns a new Entry with fields merged in.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithDuration records d as duration_ms.
func (e *Entry) WithDuration(d time.Duration) *Entry {
	return e.With(Fields{FieldDurationMs: d.Milliseconds()})
}

// WithStatus records a status field.
func (e *Entry) WithStatus(status string) *Entry {
	return e.With(Fields{FieldStatus: status})
}

func (e *Entry) log(ctx context.Context, level logrus.Level, format string, args ...interface{}) {
	FromContext(ctx).Entry.WithFields(logrus.Fields(e.fields)).Logf(level, format, args...)
}

// Debug logs at debug level through ctx's logger.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.DebugLevel, format, args...)
}

// Info logs at info level through ctx's logger.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.InfoLevel, format, args...)
}

// Warn logs at warn level through ctx's logger.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.WarnLevel, format, args...)
}

// Error logs at error level through ctx's logger.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.log(ctx, logrus.ErrorLevel, format, args...)
}
