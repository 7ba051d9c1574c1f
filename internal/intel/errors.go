package intel

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a service rejects the API key.
	ErrUnauthorized = errors.New("api key rejected")

	// ErrNoAPIKey is returned when a credentialed client is built without a key.
	ErrNoAPIKey = errors.New("api key is not configured")
)

// LookupError describes a failed reputation lookup.
type LookupError struct {
	Source     string
	Subject    string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s lookup of %s: HTTP %d", e.Source, e.Subject, e.StatusCode)
	}
	return fmt.Sprintf("%s lookup of %s: %v", e.Source, e.Subject, e.Err)
}

// Unwrap returns the underlying error.
func (e *LookupError) Unwrap() error {
	return e.Err
}
