package types

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrConfiguration marks missing credentials, a missing source document or
	// inconsistent profile settings. Fatal before any core operation.
	ErrConfiguration = errors.New("configuration error")
	// ErrIngestion marks an unreadable document or a failed embedding batch.
	ErrIngestion = errors.New("ingestion error")
	// ErrRetrieval marks a failed embedding or vector-store call during search.
	ErrRetrieval = errors.New("retrieval error")
	// ErrGeneration marks a failed text-generation call.
	ErrGeneration = errors.New("generation error")
)

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}
