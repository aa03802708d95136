package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errClass int

const (
	classUnknown errClass = iota
	classNotFound
	classConflict
	classUnavailable
)

// Error carries the repository classification for a failed Firestore call.
// It satisfies the RepositoryError interface in the repositories package.
type Error struct {
	op    string
	class errClass
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op == "" {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsNotFound reports whether the document did not exist.
func (e *Error) IsNotFound() bool { return e != nil && e.class == classNotFound }

// IsConflict reports whether a concurrent write or precondition lost.
func (e *Error) IsConflict() bool { return e != nil && e.class == classConflict }

// IsUnavailable reports whether the failure looks transient and retryable.
func (e *Error) IsUnavailable() bool { return e != nil && e.class == classUnavailable }

func classify(code codes.Code) errClass {
	switch code {
	case codes.NotFound:
		return classNotFound
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition, codes.OutOfRange:
		return classConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return classUnavailable
	default:
		return classUnknown
	}
}

// WrapError maps a Firestore (gRPC) error onto repository semantics.
// Context cancellation passes through untouched so errors.Is keeps working
// at the call sites that race a deadline.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var wrapped *Error
	if errors.As(err, &wrapped) {
		if wrapped.op == "" {
			wrapped.op = op
		}
		return wrapped
	}
	return &Error{op: op, class: classify(status.Code(err)), cause: err}
}
