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
		Err:     nil,
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
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeUpstream            = "UPSTREAM_ERROR"
	ErrCodeParse               = "PARSE_ERROR"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyDocumentText = NewDomainError(ErrCodeValidation, "document text is empty")
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query text is empty")
	ErrUnknownAction     = NewDomainError(ErrCodeValidation, "unknown credit action")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrUserNotFound      = NewDomainError(ErrCodeNotFound, "user not found")
	ErrIngestJobNotFound = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Authorization errors
var (
	ErrInvalidToken = NewDomainError(ErrCodeUnauthorized, "invalid access token")
)

// Configuration errors: a required credential or setting is missing. These
// fail the request before any paid upstream call is made.
var (
	ErrNoUsableKey         = NewDomainError(ErrCodeConfiguration, "no provider key available: supply your own key, join a team with a shared key, or use credits")
	ErrNoServerKey         = NewDomainError(ErrCodeConfiguration, "server provider key is not configured")
	ErrEmbeddingNotEnabled = NewDomainError(ErrCodeConfiguration, "embedding provider is not configured")
	ErrStorageNotEnabled   = NewDomainError(ErrCodeConfiguration, "file storage is not configured")
)
