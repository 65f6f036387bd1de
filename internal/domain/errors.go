package domain

import "fmt"

// ValidationError is field-level and recoverable; callers surface it inline
// and stay on the current step.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AuthExpiredError is non-fatal: the caller prompts re-authentication and
// preserves the step to return to afterwards.
type AuthExpiredError struct {
	ReturnStep int
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("authentication expired, return to step %d after re-login", e.ReturnStep)
}
