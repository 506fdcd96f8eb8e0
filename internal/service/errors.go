package service

import (
	"errors"
	"fmt"
	"log/slog"

	"taskflow/internal/repository"
)

// ErrorKind classifies a rejected operation
type ErrorKind int

const (
	KindStorage ErrorKind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "storage"
	}
}

// Error is returned by every service operation that fails. Message is safe to
// show to the caller; Err keeps the cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func AuthenticationError(msg string) error { return &Error{Kind: KindAuthentication, Message: msg} }
func AuthorizationError(msg string) error  { return &Error{Kind: KindAuthorization, Message: msg} }
func ValidationError(msg string) error     { return &Error{Kind: KindValidation, Message: msg} }
func NotFoundError(msg string) error       { return &Error{Kind: KindNotFound, Message: msg} }
func ConflictError(msg string) error       { return &Error{Kind: KindConflict, Message: msg} }

// StorageError hides cause behind a generic message
func StorageError(cause error) error {
	return &Error{Kind: KindStorage, Message: "Internal storage error", Err: cause}
}

// KindOf reports the kind of err; untyped errors count as storage failures
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStorage
}

// IsKind reports whether err is a service error of kind
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// storageFailure passes typed errors through and turns everything else into
// a logged StorageError. notFound is used when the repository reports a miss.
func storageFailure(logger *slog.Logger, op string, err error, notFound string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if notFound != "" && errors.Is(err, repository.ErrNotFound) {
		return NotFoundError(notFound)
	}
	if logger != nil {
		logger.Error("storage failure", "op", op, "error", err)
	}
	return StorageError(err)
}
