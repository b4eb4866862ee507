package services

import (
	"errors"
	"fmt"
)

// ErrSourceNotFound aborts a pipeline run for an unknown source.
var ErrSourceNotFound = errors.New("source not found")

// ConfigError reports a bad level/category mapping. It is only ever
// returned at construction time, never during extraction.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("extraction config: %s", e.Reason)
}

// ValidationError reports a record missing required provenance fields.
// It is fatal for that one record only.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid extraction record: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
