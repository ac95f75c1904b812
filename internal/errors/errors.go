// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrFieldOverflow        = errors.New("field value exceeds its bit width")
	ErrOutOfRange           = errors.New("value outside [0, 2^256)")
	ErrUnknownStrategy      = errors.New("unknown strategy")
	ErrInconsistentPosition = errors.New("inconsistent position")
	ErrInvalidTimeframe     = errors.New("invalid timeframe")
	ErrInvalidScan          = errors.New("invalid scan range")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrDatabaseError        = errors.New("database error")
	ErrUnknownTool          = errors.New("unknown tool")
)

// FieldError reports a token id field that does not fit its bit width.
type FieldError struct {
	Field string
	Value interface{}
	Width uint
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s (%v) does not fit in %d bits", e.Field, e.Value, e.Width)
}

func (e *FieldError) Unwrap() error {
	return ErrFieldOverflow
}

// NewFieldError creates a new FieldError.
func NewFieldError(field string, value interface{}, width uint) *FieldError {
	return &FieldError{
		Field: field,
		Value: value,
		Width: width,
	}
}

// PositionError represents a leg pattern that contradicts its strategy.
type PositionError struct {
	Strategy string
	Leg      int // -1 when the error concerns the whole position
	Reason   string
}

func (e *PositionError) Error() string {
	if e.Leg < 0 {
		return fmt.Sprintf("inconsistent position [%s]: %s", e.Strategy, e.Reason)
	}
	return fmt.Sprintf("inconsistent position [%s] leg %d: %s", e.Strategy, e.Leg, e.Reason)
}

func (e *PositionError) Unwrap() error {
	return ErrInconsistentPosition
}

// NewPositionError creates a new PositionError.
func NewPositionError(strategy string, leg int, reason string) *PositionError {
	return &PositionError{
		Strategy: strategy,
		Leg:      leg,
		Reason:   reason,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Key      string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Key, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, key, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Key:      key,
		Message:  message,
		Err:      err,
	}
}

// AgentError represents an error from an agent tool call.
type AgentError struct {
	Tool      string
	Operation string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error [%s] %s: %v", e.Tool, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError creates a new AgentError.
func NewAgentError(tool, operation string, err error) *AgentError {
	return &AgentError{
		Tool:      tool,
		Operation: operation,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
