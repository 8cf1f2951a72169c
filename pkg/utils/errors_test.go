package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKernelError_Error(t *testing.T) {
	err := ErrNotAChild.WithPID(12).WithOperation("wait").WithDetail("caller", 3).WithDetail("alive", true)

	want := "[ECHILD] - not a child of caller - op: wait - pid: 12 - details: {alive=true, caller=3}"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestKernelError_Is(t *testing.T) {
	err := ErrNoSuchProcess.WithPID(5).WithOperation("wait")

	if !errors.Is(err, ErrNoSuchProcess) {
		t.Error("Enriched copy should match its sentinel")
	}
	if errors.Is(err, ErrNotAChild) {
		t.Error("Different codes should not match")
	}

	wrapped := fmt.Errorf("waitpid: %w", err)
	if !errors.Is(wrapped, ErrNoSuchProcess) {
		t.Error("Wrapped error should match its sentinel")
	}

	var kerr *KernelError
	if !errors.As(wrapped, &kerr) || kerr.PID != 5 {
		t.Error("errors.As should recover the pid")
	}
}

func TestKernelError_WithDoesNotMutateSentinel(t *testing.T) {
	_ = ErrOutOfMemory.WithPID(9).WithDetail("reason", "test")

	if ErrOutOfMemory.PID != 0 {
		t.Error("Sentinel pid should stay zero")
	}
	if ErrOutOfMemory.Details != nil {
		t.Error("Sentinel details should stay nil")
	}

	a := ErrInvalidArgument.WithDetail("k", 1)
	b := a.WithDetail("k", 2)
	if a.Details["k"] != 1 || b.Details["k"] != 2 {
		t.Error("Details should be copied, not shared")
	}
}

func TestKernelError_Unwrap(t *testing.T) {
	cause := errors.New("allocation failed")
	err := ErrOutOfMemory.WithOperation("fork").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("Cause should be reachable through Unwrap")
	}
	if !strings.HasSuffix(err.Error(), "cause: allocation failed") {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}
}

func TestAssert(t *testing.T) {
	Assert(true, "test", "never")

	defer func() {
		r := recover()
		iv, ok := r.(*InvariantViolation)
		if !ok {
			t.Fatalf("Expected *InvariantViolation, got %T", r)
		}
		if iv.Error() != "invariant violation in proctable: pid 4 exited twice" {
			t.Errorf("Unexpected message %q", iv.Error())
		}
	}()
	Assert(false, "proctable", "pid %d exited twice", 4)
	t.Error("Assert should have panicked")
}

func TestErrorCollector(t *testing.T) {
	ec := NewErrorCollector()
	ec.Add(nil)

	if ec.HasErrors() || ec.Err() != nil {
		t.Error("Empty collector should report no errors")
	}
	if ec.Error() != "no errors" {
		t.Errorf("Unexpected message %q", ec.Error())
	}

	ec.Add(errors.New("first"))
	if ec.Error() != "first" {
		t.Errorf("Single error should be reported as is, got %q", ec.Error())
	}

	ec.Add(errors.New("second"))
	if len(ec.GetErrors()) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(ec.GetErrors()))
	}
	if !strings.HasPrefix(ec.Error(), "2 errors occurred:\n  1: first\n  2: second") {
		t.Errorf("Unexpected message %q", ec.Error())
	}
	if ec.Err() == nil {
		t.Error("Err should be non-nil once errors are collected")
	}
}
