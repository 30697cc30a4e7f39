package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrCatalogUnavailable means the listing store could not be queried.
	// Callers may retry the whole request.
	ErrCatalogUnavailable = eris.New("catalog unavailable")

	ErrListingNotFound = eris.New("listing not found")
)

// ValidationError reports every problem found in a request before any
// filtering happens.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid criteria: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
