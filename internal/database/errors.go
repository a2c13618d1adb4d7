package database

import (
	"errors"
	"fmt"
)

// Store error kinds. Backends attach one of them to driver errors through StoreError.
var (
	// ErrConstraint marks uniqueness, check and trigger violations.
	ErrConstraint = errors.New("constraint violation")
	// ErrForeignKey marks foreign key violations; errors.Is(ErrForeignKey, ErrConstraint) holds.
	ErrForeignKey = fmt.Errorf("foreign key %w", ErrConstraint)
	// ErrConflict marks transient serialization failures that are safe to retry from scratch.
	ErrConflict = errors.New("transaction conflict")
)

// StoreError carries the classified kind and the driver code next to the original error.
type StoreError struct {
	Kind error
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v (%s)", e.Err, e.Code)
	}
	return e.Err.Error()
}

// Unwrap exposes both the kind and the driver error to errors.Is and errors.As.
func (e *StoreError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Classifier maps a driver error to one of the store error kinds.
// It returns a nil kind for errors it does not recognise.
type Classifier func(err error) (kind error, code string)

// Classify wraps err in a StoreError when classify recognises it.
// Errors that are already classified are returned unchanged.
func Classify(err error, classify Classifier) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	kind, code := classify(err)
	if kind == nil {
		return err
	}
	return &StoreError{Kind: kind, Code: code, Err: err}
}
