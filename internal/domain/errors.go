package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUpload             = errors.New("upload failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSend               = errors.New("failed to send message")
)

// Entity kinds reported by NotFoundError.
const (
	KindProduct    = "product"
	KindAttachment = "attachment"
	KindEntry      = "attachment entry"
	KindBlob       = "image"
	KindUser       = "user"
	KindImageSet   = "image set"
)

// ConflictReason is the machine-readable cause of a ConflictError.
type ConflictReason string

const (
	ConflictDuplicateName       ConflictReason = "duplicate_name"
	ConflictDuplicateAttachment ConflictReason = "duplicate_attachment"
	ConflictUserExists          ConflictReason = "user_exists"
	ConflictSingleUserOnly      ConflictReason = "single_user_only"
	ConflictEntityInUse         ConflictReason = "entity_in_use"
)

// NotFoundError names the kind of entity that could not be resolved.
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound returns a NotFoundError for kind.
func NotFound(kind string) error {
	return &NotFoundError{Kind: kind}
}

// ConflictError is returned when a write would break a uniqueness or policy rule.
type ConflictError struct {
	Reason  ConflictReason
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict: " + string(e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Conflict returns a ConflictError with a formatted message.
func Conflict(reason ConflictReason, format string, args ...interface{}) error {
	return &ConflictError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Invalid wraps ErrValidation with a human readable message.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
