package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared across components.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")
)

// Domain errors. Missing entities map to 404, unique-key collisions to 409,
// ownership failures to 401, malformed-input-shaped failures to 400.
var (
	ErrArchivistNotFound = New("ARCHIVIST_NOT_FOUND", http.StatusNotFound, "archivist not found")
	ErrArchivistExists   = New("ARCHIVIST_EXISTS", http.StatusConflict, "archivist already exists")

	ErrArchiveNotFound = New("ARCHIVE_NOT_FOUND", http.StatusNotFound, "archive not found")
	ErrArchiveExists   = New("ARCHIVE_EXISTS", http.StatusConflict, "archive already exists")
	ErrNotAuthorized   = New("NOT_AUTHORIZED", http.StatusUnauthorized, "not authorized")

	ErrDocumentNotFound = New("DOCUMENT_NOT_FOUND", http.StatusNotFound, "document not found")
	ErrDocumentExists   = New("DOCUMENT_EXISTS", http.StatusConflict, "document already exists")
	ErrObjectNotFound   = New("OBJECT_NOT_FOUND", http.StatusNotFound, "object not found")

	ErrRecordNotFound      = New("RECORD_NOT_FOUND", http.StatusNotFound, "record not found")
	ErrIndexOutOfBounds    = New("DOCUMENT_INDEX_OUT_OF_BOUNDS", http.StatusBadRequest, "document index out of bounds")
	ErrNewIndexOutOfBounds = New("NEW_INDEX_OUT_OF_BOUNDS", http.StatusBadRequest, "new index out of bounds")
	ErrSameIndex           = New("NEW_INDEX_SAME_AS_OLD", http.StatusBadRequest, "new index is the same as the old index")
	ErrInvalidHash         = New("INVALID_HASH", http.StatusBadRequest, "invalid content hash")
	ErrInvalidID           = New("INVALID_ID", http.StatusBadRequest, "invalid id")

	ErrRevisionConflict = New("REVISION_CONFLICT", http.StatusConflict, "record was modified concurrently")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
