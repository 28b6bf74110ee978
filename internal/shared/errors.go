package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Resolution errors, used as [LoadError] kinds
	ErrNotFound      = fmt.Errorf("source not found")
	ErrMalformedData = fmt.Errorf("malformed composition data")
	ErrNetwork       = fmt.Errorf("network error")
	ErrCancelled     = fmt.Errorf("cancelled")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMarkerNotFound  = fmt.Errorf("%w: marker not found", ErrInvalidArgument)
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// LoadError describes a failed composition resolution or fetch.
//
// Kind is one of [ErrNotFound], [ErrMalformedData], [ErrNetwork] or [ErrCancelled] and
// is matched by [errors.Is].
type LoadError struct {
	Kind   error
	Op     string
	Source string
	Err    error
}

// NewLoadError creates a [LoadError].
func NewLoadError(kind error, op, source string, err error) *LoadError {
	return &LoadError{Kind: kind, Op: op, Source: source, Err: err}
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Source, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports whether target is the error kind, so callers can write errors.Is(err, ErrNotFound).
func (e *LoadError) Is(target error) bool {
	return e.Kind == target
}

// ClassifyError picks the [LoadError] kind for an arbitrary error.
// Errors that match nothing in particular are reported as fallback.
func ClassifyError(err error, fallback error) error {
	var le *LoadError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var netErr net.Error

	switch {
	case err == nil:
		return nil
	case errors.As(err, &le):
		return le.Kind
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrNetwork
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return ErrMalformedData
	case errors.As(err, &netErr):
		return ErrNetwork
	default:
		return fallback
	}
}

// WrapLoadError returns err unchanged when it already is a [LoadError], otherwise wraps it
// with the classified kind.
func WrapLoadError(err error, op, source string, fallback error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return NewLoadError(ClassifyError(err, fallback), op, source, err)
}
