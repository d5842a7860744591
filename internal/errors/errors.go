package errors

import (
	"fmt"
	"time"
)

/**
 * Error types for the TextScan client and reference extraction service.
 *
 * Every failure of the extraction call is reported as an ExtractionError so
 * callers can log the cause. The workflow never shows the cause to the user.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Extraction call errors
	ErrorTransport     ErrorCode = "TRANSPORT_FAILED"
	ErrorHTTPStatus    ErrorCode = "HTTP_STATUS"
	ErrorDecode        ErrorCode = "DECODE_FAILED"
	ErrorInvalidInput  ErrorCode = "INVALID_REQUEST"
	ErrorRecognition   ErrorCode = "RECOGNITION_FAILED"
	ErrorUnsupportedIn ErrorCode = "UNSUPPORTED_FORMAT"
)

// ExtractionError represents a structured extraction error
type ExtractionError struct {
	Code       ErrorCode
	Message    string
	Endpoint   string
	StatusCode int
	Timestamp  time.Time
	Details    map[string]interface{}
	Cause      error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewTransportError(endpoint string, elapsed time.Duration, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorTransport,
		Message:   fmt.Sprintf("request failed after %v", elapsed),
		Endpoint:  endpoint,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"elapsed": elapsed.String(),
		},
		Cause: cause,
	}
}

func NewHTTPStatusError(endpoint string, status int, body string) *ExtractionError {
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return &ExtractionError{
		Code:       ErrorHTTPStatus,
		Message:    fmt.Sprintf("extraction service returned HTTP %d", status),
		Endpoint:   endpoint,
		StatusCode: status,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"body": body,
		},
	}
}

func NewDecodeError(endpoint string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorDecode,
		Message:   "failed to parse extraction response",
		Endpoint:  endpoint,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewInvalidRequestError(message string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorInvalidInput,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewRecognitionError(engine string, cause error) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorRecognition,
		Message:   fmt.Sprintf("recognition failed in engine: %s", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(mimeType string) *ExtractionError {
	return &ExtractionError{
		Code:      ErrorUnsupportedIn,
		Message:   fmt.Sprintf("unsupported file format: %s", mimeType),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

// ToMap converts error to map for structured logging
func (e *ExtractionError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.Endpoint != "" {
		result["endpoint"] = e.Endpoint
	}
	if e.StatusCode != 0 {
		result["status_code"] = e.StatusCode
	}
	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// CodeOf returns the code of err when it is an ExtractionError, or "" otherwise.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*ExtractionError); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
