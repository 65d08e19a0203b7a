package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	ErrStorage             = errors.New("storage error")
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	ok := errors.As(err, &validationError)
	return ok
}

// NewIndexedValidationError reports a failure of the index-th record (1-based) of a batch.
func NewIndexedValidationError(index int, msg string) error {
	return &ValidationError{Msg: fmt.Sprintf("Validation error at transaction %d: %s", index, msg)}
}

type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Error() string {
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(ve.Messages(), "; "))
}

func (ve *ValidationErrors) Add(err error) {
	ve.Errors = append(ve.Errors, err)
}

func (ve *ValidationErrors) Messages() []string {
	errorMessages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		errorMessages[i] = err.Error()
	}
	return errorMessages
}

// OrNil returns ve when it holds at least one error.
func (ve *ValidationErrors) OrNil() error {
	if ve == nil || len(ve.Errors) == 0 {
		return nil
	}
	return ve
}

func IsValidationErrors(err error) bool {
	var validationErrors *ValidationErrors
	ok := errors.As(err, &validationErrors)
	return ok
}

// PriceUnavailableError is returned once every lookup attempt for a symbol failed.
type PriceUnavailableError struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *PriceUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("price unavailable for %s after %d attempt(s)", e.Symbol, e.Attempts)
	}
	return fmt.Sprintf("price unavailable for %s after %d attempt(s): %v", e.Symbol, e.Attempts, e.Err)
}

func (e *PriceUnavailableError) Unwrap() error { return e.Err }

func (e *PriceUnavailableError) Is(target error) bool { return target == ErrPriceUnavailable }

// UpstreamError marks a transport failure talking to an external source.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnreachable }

func NewUpstreamError(source string, err error) error {
	return &UpstreamError{Source: source, Err: err}
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err, returning nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
