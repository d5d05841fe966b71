package errors

import "fmt"

// Error codes
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"

	// Import pipeline codes. Structural and engine-init errors abort an
	// import; the remaining ones are absorbed inside the pipeline.
	ErrCodeStructural    = "STRUCTURAL_ERROR"
	ErrCodeEngineInit    = "ENGINE_INIT_ERROR"
	ErrCodeMediaManifest = "MEDIA_MANIFEST_ERROR"
	ErrCodeCardSkip      = "CARD_SKIP"
	ErrCodeTransport     = "TRANSPORT_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "STRUCTURAL_ERROR")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so callers can test taxonomy membership
// with errors.Is against a bare &AppError{Code: ...}.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  400,
	}
}

// NewStructuralError marks a package that is not a valid deck archive.
func NewStructuralError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeStructural,
		Message: message,
		Status:  422,
		Err:     err,
	}
}

// NewEngineInitError marks a failure to bring up the embedded query engine.
func NewEngineInitError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeEngineInit,
		Message: "query engine initialization failed",
		Status:  500,
		Err:     err,
	}
}

// NewMediaManifestError marks a missing or unparsable media manifest.
// The import proceeds with an empty media set.
func NewMediaManifestError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeMediaManifest,
		Message: "media manifest missing or malformed",
		Status:  422,
		Err:     err,
	}
}

// NewCardSkipError marks a single card that could not be rendered.
func NewCardSkipError(cardID int64, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeCardSkip,
		Message: fmt.Sprintf("card %d skipped: %s", cardID, reason),
		Status:  422,
	}
}

// NewTransportError marks a failure of the off-thread execution path.
func NewTransportError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeTransport,
		Message: message,
		Status:  500,
		Err:     err,
	}
}
