package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic raised inside training or prediction, recovered into an error.
type PanicError struct {
	Operation  string
	PanicValue interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the goroutine stack captured at recovery.
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.PanicValue)).
		Str("stack", e.StackTrace)
}

// Recover turns a panic into an error stored in *err. Deferred by Train, Session.Extend
// and Objective.Evaluate so one bad fold fails the sweep with context instead of
// crashing the process:
//
//	defer errors.Recover(&err, "Session.Extend")
//
// An error already assigned to *err is kept as the cause.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := &PanicError{Operation: operation, PanicValue: r, StackTrace: string(debug.Stack())}
	if *err == nil {
		*err = panicErr
		return
	}
	*err = errors.WithSecondaryError(errors.Wrapf(*err, "panic in %s: %v", operation, r), panicErr)
}
