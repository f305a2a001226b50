package services

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable means the search store is not configured.
	ErrServiceUnavailable = errors.New("search service is not available")
	// ErrMissingField is wrapped with the name of the missing input field.
	ErrMissingField = errors.New("missing required field")
	// ErrSearchFailed wraps store errors raised while querying.
	ErrSearchFailed = errors.New("search failed")
)

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}
