package logger

import (
	"context"
	"sync"
)

type contextKey struct{}

var loggerKey = contextKey{}

var (
	defaultLogger   = New(nil)
	defaultLoggerMu sync.RWMutex
)

// GetDefault returns the logger used when a context carries none.
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the default logger. Nil is ignored.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// WithContext returns a copy of ctx carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger carried by ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithFields returns a copy of ctx whose logger has fields added.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// SetRequestID tags ctx's logger with an HTTP request ID.
func SetRequestID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldRequestID: id})
}

// SetTask tags ctx's logger with the task being executed.
func SetTask(ctx context.Context, taskID int64, networkKey, day string) context.Context {
	return WithFields(ctx, Fields{
		FieldTaskID:     taskID,
		FieldNetworkKey: networkKey,
		FieldDay:        day,
	})
}

// SetRunID tags ctx's logger with the ID of one task execution.
func SetRunID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, Fields{FieldRunID: id})
}

// SetComponent tags ctx's logger with the emitting component.
func SetComponent(ctx context.Context, name string) context.Context {
	return WithFields(ctx, Fields{FieldComponent: name})
}

// GetRequestID returns the request ID carried by ctx, if any.
func GetRequestID(ctx context.Context) string {
	return fieldString(ctx, FieldRequestID)
}

// GetRunID returns the run ID carried by ctx, if any.
func GetRunID(ctx context.Context) string {
	return fieldString(ctx, FieldRunID)
}

func fieldString(ctx context.Context, key string) string {
	s, _ := FromContext(ctx).Data[key].(string)
	return s
}
