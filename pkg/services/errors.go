package services

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kingbora/easy-law-sub001/pkg/conflict"
	"github.com/kingbora/easy-law-sub001/pkg/models"
)

// Service errors
var (
	// ErrRecordNotFound means the case is gone or soft-deleted. The edit
	// session cannot continue; there is nothing to merge against.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMalformedMeta means the update envelope is unusable: no base
	// version, no base snapshot, or an empty dirty field set.
	ErrMalformedMeta = errors.New("malformed update meta")
)

// FieldError is one field-level constraint failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports payload constraint failures. It is raised before
// any version check, so it never carries conflict information.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError is the structured outcome of an update rejected by the
// conflict classifier. It is an expected, first-class result of
// SubmitUpdate, not a fault: callers inspect Details to decide between
// refreshing and merging, and hand Diff to the presentation layer.
type ConflictError struct {
	Details *models.ConflictDetails
	Diff    *conflict.DiffView
}

func (e *ConflictError) Error() string {
	if e.Details == nil {
		return "update conflict"
	}
	return fmt.Sprintf("update conflict (%s): %s", e.Details.Type, e.Details.Message)
}

// IsMergeable returns true when a merge retry can resolve this conflict
func (e *ConflictError) IsMergeable() bool {
	return e.Details != nil && e.Details.IsMergeable()
}

// AsConflictError unwraps err into a ConflictError when it is one
func AsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsValidationError unwraps err into a ValidationError when it is one
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
