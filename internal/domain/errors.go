package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies how a failed pipeline step affects the task.
type ErrorKind int

const (
	// KindInputInvalid means the task itself is unusable; no status is written.
	KindInputInvalid ErrorKind = iota + 1
	// KindTransportFailed covers bad statuses, empty bodies and network errors.
	KindTransportFailed
	// KindParseFailed means the payload could not be decoded.
	KindParseFailed
	// KindStoreFailed means a database read or write failed.
	KindStoreFailed
	// KindNoData means the step ran correctly and there was nothing to report.
	KindNoData
)

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInputInvalid:
		return "input_invalid"
	case KindTransportFailed:
		return "transport_failed"
	case KindParseFailed:
		return "parse_failed"
	case KindStoreFailed:
		return "store_failed"
	case KindNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// TaskError is the error returned by every pipeline step.
type TaskError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewTaskError creates a TaskError without an underlying cause.
func NewTaskError(kind ErrorKind, format string, args ...interface{}) *TaskError {
	return &TaskError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapTaskError creates a TaskError carrying err as its cause.
func WrapTaskError(kind ErrorKind, err error, format string, args ...interface{}) *TaskError {
	return &TaskError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s, msg:%s", e.Message, e.Err.Error())
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first TaskError in err's chain.
// Errors that are not TaskErrors are treated as store failures.
func KindOf(err error) ErrorKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindStoreFailed
}

// IsNoData reports whether err marks a run with nothing to report.
func IsNoData(err error) bool {
	return err != nil && KindOf(err) == KindNoData
}
