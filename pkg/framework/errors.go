package framework

import (
	"errors"
	"strings"
)

// AggregatedError collects the errors of several concurrent operations.
type AggregatedError struct {
	Errors []error
}

func (e *AggregatedError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	if len(e.Errors) > 1 {
		sb.WriteString("Multiple errors:")
	}
	for _, err := range e.Errors {
		sb.WriteByte('\n')
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Is matches target against every collected error.
func (e *AggregatedError) Is(target error) bool {
	for _, err := range e.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Add collects non-nil errors and returns e for chaining.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err == nil {
			continue
		}
		e.Errors = append(e.Errors, err)
	}
	return e
}

// Aggregate returns nil when nothing was collected.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) > 0 {
		return e
	}
	return nil
}
