package services

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload marks an ingestion payload that can never be stored.
// It is not worth retrying.
var ErrInvalidPayload = errors.New("invalid listing payload")

// ValidationError rejects query parameters before the store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
