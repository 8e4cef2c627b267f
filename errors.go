package gokernel

import "github.com/jdoe95/gokernel/kernel"

// Error, KernelErrorCode, and the error-code constants are defined in
// package kernel (which must be able to raise them without importing this
// package back) and re-exported here as aliases, the same way package
// kiface's types are re-exported rather than duplicated.
type (
	Error           = kernel.Error
	KernelErrorCode = kernel.KernelErrorCode
)

const (
	ErrCodeNotInitialized  = kernel.ErrCodeNotInitialized
	ErrCodeAlreadyStarted  = kernel.ErrCodeAlreadyStarted
	ErrCodeInvalidHandle   = kernel.ErrCodeInvalidHandle
	ErrCodeInvalidPriority = kernel.ErrCodeInvalidPriority
	ErrCodePoolExhausted   = kernel.ErrCodePoolExhausted
	ErrCodePortRequired    = kernel.ErrCodePortRequired
)

// NewError creates a new structured error.
func NewError(op string, code KernelErrorCode, msg string) *Error {
	return kernel.NewError(op, code, msg)
}

// WrapError wraps an existing error with operation context.
func WrapError(op string, inner error) *Error {
	return kernel.WrapError(op, inner)
}

// IsCode reports whether err is a *Error carrying the given code.
func IsCode(err error, code KernelErrorCode) bool {
	return kernel.IsCode(err, code)
}
