package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrDuplicate        = errors.New("duplicate document")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// ValidationError reports a user-correctable intake failure; it never
// reaches the job queue.
type ValidationError struct {
	Filename string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Filename == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Message)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
