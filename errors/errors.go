package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedOutput indicates that a model reply did not match the expected shape
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrMissingConfig indicates that a required credential or setting is absent
	ErrMissingConfig = errors.New("missing configuration")
)

// Step names a stage of a research session.
type Step string

const (
	StepQueryGeneration Step = "query_generation"
	StepSearch          Step = "search"
	StepReflection      Step = "reflection"
	StepAnswer          Step = "answer"
)

// StepError reports which stage of a research session failed.
// QueryID is only meaningful for StepSearch.
type StepError struct {
	Step    Step
	QueryID int
	Err     error
}

// NewStepError wraps err with the failing step.
func NewStepError(step Step, err error) *StepError {
	return &StepError{Step: step, QueryID: -1, Err: err}
}

// NewSearchError wraps err with the id of the failing search.
func NewSearchError(queryID int, err error) *StepError {
	return &StepError{Step: StepSearch, QueryID: queryID, Err: err}
}

func (e *StepError) Error() string {
	if e.Step == StepSearch && e.QueryID >= 0 {
		return fmt.Sprintf("%s (id %d) failed: %v", e.Step, e.QueryID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is reports whether err is or wraps target. Re-exported so callers importing
// this package under its default name keep access to the stdlib helpers.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
