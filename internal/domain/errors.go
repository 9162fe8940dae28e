package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingDocumentURL = NewDomainError(ErrCodeValidation, "document URL is required")
	ErrNoQuestions        = NewDomainError(ErrCodeValidation, "at least one question is required")
)

// Authorization errors
var (
	ErrInvalidBearerToken = NewDomainError(ErrCodeUnauthorized, "invalid bearer token")
)

// Pipeline errors
var (
	ErrEmbeddingFailed = NewDomainError(ErrCodeInternalError, "embedding generation failed")
	ErrIndexingFailed  = NewDomainError(ErrCodeInternalError, "document indexing failed")
)
