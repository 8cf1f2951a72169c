// Package utils provides error types shared by the rendezvous subsystems
package utils

import (
	"fmt"
	"sort"
	"strings"
)

// KernelError represents a recoverable error returned by a subsystem
// operation. Errors are compared by Code, so an enriched copy of a sentinel
// still matches it with errors.Is.
type KernelError struct {
	Code      string
	Message   string
	PID       int
	Operation string
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface
func (e *KernelError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op: %s", e.Operation))
	}

	if e.PID != 0 {
		parts = append(parts, fmt.Sprintf("pid: %d", e.PID))
	}

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var details []string
		for _, k := range keys {
			details = append(details, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		parts = append(parts, fmt.Sprintf("details: {%s}", strings.Join(details, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " - ")
}

// Unwrap returns the underlying cause
func (e *KernelError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a KernelError with the same code
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// clone returns a copy that can be enriched without touching the sentinel
func (e *KernelError) clone() *KernelError {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// WithPID returns a copy of the error carrying pid
func (e *KernelError) WithPID(pid int) *KernelError {
	c := e.clone()
	c.PID = pid
	return c
}

// WithOperation returns a copy of the error carrying the failed operation
func (e *KernelError) WithOperation(op string) *KernelError {
	c := e.clone()
	c.Operation = op
	return c
}

// WithCause returns a copy of the error wrapping err
func (e *KernelError) WithCause(err error) *KernelError {
	c := e.clone()
	c.Cause = err
	return c
}

// WithDetail returns a copy of the error with an extra detail
func (e *KernelError) WithDetail(key string, value interface{}) *KernelError {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]interface{})
	}
	c.Details[key] = value
	return c
}

var (
	// ErrNoSuchProcess is returned when a pid is not in the process table
	ErrNoSuchProcess = &KernelError{
		Code:    "ESRCH",
		Message: "no such process",
	}

	// ErrNotAChild is returned when waiting for a process that is not a child of the caller
	ErrNotAChild = &KernelError{
		Code:    "ECHILD",
		Message: "not a child of caller",
	}

	// ErrInvalidOption is returned for unsupported wait options
	ErrInvalidOption = &KernelError{
		Code:    "EINVAL_OPTION",
		Message: "invalid options",
	}

	// ErrInvalidArgument is returned for malformed arguments
	ErrInvalidArgument = &KernelError{
		Code:    "EINVAL",
		Message: "invalid argument",
	}

	// ErrOutOfMemory is returned when process bookkeeping cannot be allocated
	ErrOutOfMemory = &KernelError{
		Code:    "ENOMEM",
		Message: "out of memory",
	}

	// ErrArgListTooLong is returned when exec arguments exceed the configured limits
	ErrArgListTooLong = &KernelError{
		Code:    "E2BIG",
		Message: "argument list too long",
	}

	// ErrPIDInUse is returned when registering a pid that already has an entry
	ErrPIDInUse = &KernelError{
		Code:    "EEXIST",
		Message: "pid already registered",
	}

	// ErrNoLoader is returned by exec when no program loader is configured
	ErrNoLoader = &KernelError{
		Code:    "ENOEXEC",
		Message: "no program loader configured",
	}
)

// InvariantViolation describes a broken internal invariant. It is raised
// with panic and never returned: the shared state it guards cannot be
// repaired locally.
type InvariantViolation struct {
	Component string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Component, e.Detail)
}

// Assert panics with an InvariantViolation when cond is false
func Assert(cond bool, component, format string, args ...interface{}) {
	if !cond {
		panic(&InvariantViolation{
			Component: component,
			Detail:    fmt.Sprintf(format, args...),
		})
	}
}

// ErrorCollector collects multiple errors during validation or processing
type ErrorCollector struct {
	errors []error
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collector
func (ec *ErrorCollector) Add(err error) {
	if err != nil {
		ec.errors = append(ec.errors, err)
	}
}

// HasErrors returns whether any errors were collected
func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errors) > 0
}

// GetErrors returns all collected errors
func (ec *ErrorCollector) GetErrors() []error {
	return ec.errors
}

// Err returns the collector as an error, or nil when nothing was collected
func (ec *ErrorCollector) Err() error {
	if !ec.HasErrors() {
		return nil
	}
	return ec
}

// Error returns a string representation of all errors
func (ec *ErrorCollector) Error() string {
	if len(ec.errors) == 0 {
		return "no errors"
	}

	if len(ec.errors) == 1 {
		return ec.errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(ec.errors)))

	for i, err := range ec.errors {
		sb.WriteString(fmt.Sprintf("  %d: %v\n", i+1, err))
	}

	return sb.String()
}
