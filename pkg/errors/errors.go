// Package errors provides the error taxonomy and warning hooks used across windlofo.
//
// Every constructor attaches a stack trace through cockroachdb/errors, and every structured
// error implements zerolog.LogObjectMarshaler so it can be logged with its fields intact.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("windlofo-warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the handler used by Warn when no zerolog sink is installed.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a structured warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The zerolog sink wins over the plain handler when both are set.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// UndefinedMetricWarning reports a metric that cannot be computed for the given input,
// for example CAPE over a ground truth that sums to zero.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // value returned under this condition
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	LOFO error taxonomy
//
// ===========================================================================

// DomainError is returned when a value lies outside the domain of a transform,
// e.g. a non-positive value under log-differencing.
type DomainError struct {
	Op    string
	Index int
	Value float64
	Rule  string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("windlofo: %s: value %g at index %d violates domain (%s)", e.Op, e.Value, e.Index, e.Rule)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DomainError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("index", e.Index).
		Float64("value", e.Value).
		Str("rule", e.Rule).
		Str("type", "DomainError")
}

// NewDomainError creates a DomainError with a stack trace.
func NewDomainError(op string, index int, value float64, rule string) error {
	return errors.WithStack(&DomainError{Op: op, Index: index, Value: value, Rule: rule})
}

// SchemaError is returned when the columns requested from a feature table do not match
// what the table holds, or when aligned sequences disagree in length.
type SchemaError struct {
	Op      string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("windlofo: %s: schema mismatch for column %q: %s", e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("windlofo: %s: schema mismatch: %s", e.Op, e.Message)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("message", e.Message).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace.
func NewSchemaError(op, column, message string) error {
	return errors.WithStack(&SchemaError{Op: op, Column: column, Message: message})
}

// InsufficientDataError is returned when there are too few rows for the configured
// fold and holdout layout.
type InsufficientDataError struct {
	Op       string
	Rows     int
	Required int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("windlofo: %s: insufficient data: %s (rows=%d, required=%d)", e.Op, e.Reason, e.Rows, e.Required)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rows", e.Rows).
		Int("required", e.Required).
		Str("reason", e.Reason).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError creates an InsufficientDataError with a stack trace.
func NewInsufficientDataError(op string, rows, required int, reason string) error {
	return errors.WithStack(&InsufficientDataError{Op: op, Rows: rows, Required: required, Reason: reason})
}

// NoFold marks an EvaluationError raised outside the fold loop.
const NoFold = -1

// EvaluationError carries the feature and fold that were active when an objective
// evaluation failed. Feature is empty for the full-feature baseline.
type EvaluationError struct {
	Feature string
	Fold    int
	Err     error
}

func (e *EvaluationError) Error() string {
	feature := e.Feature
	if feature == "" {
		feature = "<baseline>"
	}
	if e.Fold == NoFold {
		return fmt.Sprintf("windlofo: evaluation failed (feature_out=%s): %v", feature, e.Err)
	}
	return fmt.Sprintf("windlofo: evaluation failed (feature_out=%s, fold=%d): %v", feature, e.Fold, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *EvaluationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("feature_out", e.Feature).
		Int("fold", e.Fold).
		AnErr("cause", e.Err).
		Str("type", "EvaluationError")
}

// NewEvaluationError wraps err with feature and fold context. An error that already
// carries evaluation context is only enriched with the feature when it was missing.
func NewEvaluationError(feature string, fold int, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if errors.As(err, &existing) {
		if existing.Feature == "" && feature != "" {
			existing.Feature = feature
		}
		return err
	}
	return errors.WithStack(&EvaluationError{Feature: feature, Fold: fold, Err: err})
}

// ===========================================================================
//
//	Structured errors
//
// ===========================================================================

// NotFittedError is returned when a model is used before it has been trained.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("windlofo: %s: this model is not fitted yet. Train it before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError is returned when input dimensions differ from what was expected.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("windlofo: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError is returned when a parameter fails validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("windlofo: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError is returned when an argument has an inappropriate value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("windlofo: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general failure inside a model.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("windlofo: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("windlofo: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError reports NaN or Inf values produced by a computation.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("windlofo: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinels
//
// ===========================================================================

var (
	// ErrEmptyData is returned for empty inputs.
	ErrEmptyData = New("empty data")

	// ErrUndefinedCAPE is returned when the ground truth sums to zero.
	ErrUndefinedCAPE = New("CAPE undefined: ground truth sums to zero")
)
