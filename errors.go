package iocoalesce

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured coalescing error with context and errno mapping
type Error struct {
	Op    string    // Operation that failed (e.g., "NEW_POOL", "MERGE")
	Code  ErrorCode // High-level error category
	Errno syscall.Errno
	Msg   string // Human-readable message
	Inner error  // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if e.Op != "" {
		return fmt.Sprintf("iocoalesce: %s (op=%s)", msg, e.Op)
	}

	return fmt.Sprintf("iocoalesce: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support by error code
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}

	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodePoolExhausted      ErrorCode = "pool exhausted"
	ErrCodeInvalidParameters  ErrorCode = "invalid parameters"
	ErrCodeInsufficientMemory ErrorCode = "insufficient memory"
	ErrCodeIOError            ErrorCode = "I/O error"
)

// Sentinel errors for errors.Is comparisons
var (
	ErrPoolExhausted     = &Error{Code: ErrCodePoolExhausted}
	ErrInvalidParameters = &Error{Code: ErrCodeInvalidParameters}
)

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewErrorWithErrno creates a new structured error with errno
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Code:  code,
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// WrapError wraps an existing error with coalescing context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if ce, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			Code:  ce.Code,
			Errno: ce.Errno,
			Msg:   ce.Msg,
			Inner: ce.Inner,
		}
	}

	code := ErrCodeIOError
	if errno, ok := inner.(syscall.Errno); ok {
		code = mapErrnoToCode(errno)
		return &Error{
			Op:    op,
			Code:  code,
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Code:  code,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// mapErrnoToCode maps syscall errno to coalescing error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeInvalidParameters
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrCodeInsufficientMemory
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}
