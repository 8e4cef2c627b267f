package kernel

import (
	"errors"
	"fmt"
)

// Error represents a structured kernel error with operation context.
//
// Error is reserved for host-program misuse of the public API surface
// (calling an operation before Init, passing a handle from a different
// Kernel). Steady-state outcomes the kernel itself models as part of its
// state machine - timeouts, full queues, an exhausted pool on Allocate -
// are reported as plain booleans or zero handles, never as an error
// value. The one exception is CreateThread, which reports a pool too full
// for the stack reservation as a nil *Thread together with an
// ErrCodePoolExhausted error.
type Error struct {
	Op    string          // operation that failed, e.g. "Create", "Allocate"
	Code  KernelErrorCode // high-level error category
	Msg   string          // human-readable message
	Inner error           // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("gokernel: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("gokernel: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// KernelErrorCode represents a high-level error category.
type KernelErrorCode string

const (
	ErrCodeNotInitialized  KernelErrorCode = "kernel not initialized"
	ErrCodeAlreadyStarted  KernelErrorCode = "kernel already started"
	ErrCodeInvalidHandle   KernelErrorCode = "invalid handle"
	ErrCodeInvalidPriority KernelErrorCode = "invalid priority"
	ErrCodePoolExhausted   KernelErrorCode = "memory pool exhausted"
	ErrCodePortRequired    KernelErrorCode = "port implementation required"
)

// NewError creates a new structured error.
func NewError(op string, code KernelErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps an existing error with operation context.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ke, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ke.Code, Msg: ke.Msg, Inner: ke.Inner}
	}
	return &Error{Op: op, Code: ErrCodeInvalidHandle, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error carrying the given code.
func IsCode(err error, code KernelErrorCode) bool {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Code == code
	}
	return false
}
