package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrTimeout    ErrorCode = "TIMEOUT"

	// Capture errors
	ErrDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	ErrAlreadyRecording  ErrorCode = "ALREADY_RECORDING"

	// Session errors
	ErrInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrMissingReferenceText ErrorCode = "MISSING_REFERENCE_TEXT"
	ErrStaleResponse        ErrorCode = "STALE_RESPONSE"

	// Gateway errors
	ErrUpload        ErrorCode = "UPLOAD_ERROR"
	ErrScoring       ErrorCode = "SCORING_ERROR"
	ErrTranscription ErrorCode = "TRANSCRIPTION_ERROR"
	ErrTts           ErrorCode = "TTS_ERROR"
	ErrDatabase      ErrorCode = "DATABASE_ERROR"
	ErrStorage       ErrorCode = "STORAGE_SERVICE_ERROR"
)

// AppError represents an application error with code and metadata.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// Code extracts the ErrorCode from any error, defaulting to ErrInternal.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// HTTPStatus returns the HTTP status code for the error.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrValidation, ErrMissingReferenceText:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrAlreadyRecording, ErrInvalidTransition:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrUpload, ErrScoring, ErrTranscription, ErrTts:
		return http.StatusBadGateway
	case ErrDeviceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors
func Internal(message string) *AppError {
	return New(ErrInternal, message)
}

func InternalWrap(message string, err error) *AppError {
	return Wrap(ErrInternal, message, err)
}

func Validation(message string) *AppError {
	return New(ErrValidation, message)
}

func NotFound(resource string) *AppError {
	return New(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// DeviceUnavailable reports a failed microphone acquisition.
func DeviceUnavailable(err error) *AppError {
	return Wrap(ErrDeviceUnavailable, "microphone unavailable", err)
}

// AlreadyRecording reports an attempt to start a capture while slotID
// is still recording.
func AlreadyRecording(slotID string) *AppError {
	return New(ErrAlreadyRecording, fmt.Sprintf("already recording slot %q", slotID)).
		WithDetails(map[string]interface{}{"active_slot_id": slotID})
}

// MissingReferenceText reports a scoring request against a slot whose
// reference text is not yet known.
func MissingReferenceText(slotID string) *AppError {
	return New(ErrMissingReferenceText, fmt.Sprintf("slot %q has no reference text to score against", slotID))
}
