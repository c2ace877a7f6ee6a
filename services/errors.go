package services

import "errors"

// Error kinds surfaced to callers. Wrap with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrNetwork    = errors.New("upstream unavailable")
	ErrStore      = errors.New("store failure")
)

// Retryable reports whether err is a transient failure the user may retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrStore)
}
