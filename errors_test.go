package iocoalesce

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message with op",
			err:  NewError("MERGE", ErrCodeInvalidParameters, "batch too large"),
			want: "iocoalesce: batch too large (op=MERGE)",
		},
		{
			name: "code only",
			err:  &Error{Code: ErrCodePoolExhausted},
			want: "iocoalesce: pool exhausted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIsByCode(t *testing.T) {
	err := NewError("NEW_POOL", ErrCodeInvalidParameters, "capacity must be positive")

	if !errors.Is(err, ErrInvalidParameters) {
		t.Error("error should match the invalid-parameters sentinel")
	}
	if errors.Is(err, ErrPoolExhausted) {
		t.Error("error should not match an unrelated sentinel")
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("underlying failure")
	err := WrapError("SPLIT", inner)

	if !errors.Is(err, inner) {
		t.Error("wrapped error should unwrap to the inner error")
	}
	if err.Op != "SPLIT" {
		t.Errorf("op = %q, want SPLIT", err.Op)
	}
	if err.Code != ErrCodeIOError {
		t.Errorf("code = %q, want I/O error for an unknown inner", err.Code)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("MERGE", nil) != nil {
		t.Error("wrapping nil should yield nil")
	}
}

func TestWrapErrorKeepsCode(t *testing.T) {
	inner := NewError("NEW_POOL", ErrCodeInvalidParameters, "bad capacity")
	err := WrapError("SETUP", inner)

	if err.Code != ErrCodeInvalidParameters {
		t.Errorf("code = %q, want the inner error's code", err.Code)
	}
	if err.Op != "SETUP" {
		t.Errorf("op = %q, want SETUP", err.Op)
	}
}

func TestErrnoMapping(t *testing.T) {
	tests := []struct {
		errno syscall.Errno
		want  ErrorCode
	}{
		{syscall.EINVAL, ErrCodeInvalidParameters},
		{syscall.E2BIG, ErrCodeInvalidParameters},
		{syscall.ENOMEM, ErrCodeInsufficientMemory},
		{syscall.ENOSPC, ErrCodeInsufficientMemory},
		{syscall.EIO, ErrCodeIOError},
		{syscall.ENOENT, ErrCodeIOError},
	}

	for _, tt := range tests {
		err := WrapError("SUBMIT", tt.errno)
		if err.Code != tt.want {
			t.Errorf("WrapError(%v) code = %q, want %q", tt.errno, err.Code, tt.want)
		}
		if !errors.Is(err, tt.errno) {
			t.Errorf("WrapError(%v) does not unwrap to the errno", tt.errno)
		}
	}
}

func TestNewErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("SUBMIT", ErrCodeIOError, syscall.EIO)

	if err.Errno != syscall.EIO {
		t.Errorf("errno = %v, want EIO", err.Errno)
	}
	if err.Msg == "" {
		t.Error("message should carry the errno text")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError("MERGE", ErrCodePoolExhausted, ""))

	if !IsCode(err, ErrCodePoolExhausted) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, ErrCodeIOError) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(nil, ErrCodeIOError) {
		t.Error("IsCode(nil) should be false")
	}
}
