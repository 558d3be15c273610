package config

import "fmt"

// UsageError is returned for bad, missing, or conflicting command line options.
type UsageError struct {
	message string
}

func (e *UsageError) Error() string {
	return e.message
}

func NewUsageError(format string, a ...any) *UsageError {
	return &UsageError{message: fmt.Sprintf(format, a...)}
}
