package services

import (
	"fmt"

	"threadline/internal/db"
)

var (
	ErrCommentNotFound     = fmt.Errorf("comment %w", db.ErrNotFound)
	ErrCommentableNotFound = fmt.Errorf("commentable %w", db.ErrNotFound)
)

// ValidationError rejects input that breaks a data-model invariant. Nothing
// has been persisted when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IntegrityError reports corrupt lineage, such as a comment that is its own
// ancestor. The operation that hit it is aborted.
type IntegrityError struct {
	CommentID uint
	Reason    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("comment %d: %s", e.CommentID, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
