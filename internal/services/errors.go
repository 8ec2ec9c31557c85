package services

import "fmt"

// ValidationError marks request-shaped failures so the HTTP layer can map
// them to 400 instead of 500.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
