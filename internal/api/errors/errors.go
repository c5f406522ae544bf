// Package errors defines the structured error envelope returned by the API.
// Client-visible messages are stable, sanitized strings; subprocess
// diagnostics stay in the logs.
package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
)

// ErrorKind classifies API errors for clients and status mapping.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindBadRequest       ErrorKind = "bad_request"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindNotFound         ErrorKind = "not_found"
	KindConversionFailed ErrorKind = "conversion_failed"
	KindEngineFailed     ErrorKind = "engine_failed"
	KindTimeout          ErrorKind = "timeout"
	KindQueueFull        ErrorKind = "queue_full"
	KindUnavailable      ErrorKind = "unavailable"
	KindInternal         ErrorKind = "internal"
)

// APIError is the JSON error body. TaskID correlates a failure with the job
// that produced it so clients can poll the status endpoint.
type APIError struct {
	Kind      ErrorKind         `json:"kind"`
	Message   string            `json:"message"`
	TaskID    string            `json:"task_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// HTTPStatus maps the error kind to a response status.
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConversionFailed:
		return http.StatusUnprocessableEntity
	case KindEngineFailed:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindQueueFull:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error with field details.
func NewValidationError(message string, fields map[string]string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: message,
		Details: fields,
	}
}

// NewBadRequestError creates a bad request error.
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Kind:    KindBadRequest,
		Message: message,
	}
}

// NewUnauthorizedError creates an unauthorized error.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Kind:    KindUnauthorized,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Message: resource + " not found",
	}
}

// NewInternalError creates an internal server error.
func NewInternalError(message string) *APIError {
	return &APIError{
		Kind:    KindInternal,
		Message: message,
	}
}

// FromDomain translates a pipeline error into its client-facing envelope.
// Messages here are deliberately generic; the detailed diagnostics inside
// ConversionError/EngineError are logged by the worker, not echoed.
func FromDomain(err error, taskID string) *APIError {
	var (
		convErr *transcribe.ConversionError
		engErr  *transcribe.EngineError
	)

	switch {
	case errors.Is(err, transcribe.ErrTimedOut),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &APIError{
			Kind:    KindTimeout,
			Message: "transcription is still processing; wait timed out",
			TaskID:  taskID,
		}
	case errors.Is(err, transcribe.ErrQueueFull):
		return &APIError{
			Kind:    KindQueueFull,
			Message: "transcription queue is full, retry later",
			TaskID:  taskID,
		}
	case errors.Is(err, transcribe.ErrQueueClosed):
		return &APIError{
			Kind:    KindUnavailable,
			Message: "service is shutting down",
			TaskID:  taskID,
		}
	case errors.Is(err, transcribe.ErrJobNotFound):
		return &APIError{
			Kind:    KindNotFound,
			Message: "job not found",
			TaskID:  taskID,
		}
	case errors.As(err, &convErr):
		return &APIError{
			Kind:    KindConversionFailed,
			Message: "audio conversion failed; the file may be corrupt or unsupported",
			TaskID:  taskID,
		}
	case errors.As(err, &engErr):
		return &APIError{
			Kind:    KindEngineFailed,
			Message: "transcription engine failed",
			TaskID:  taskID,
		}
	default:
		return &APIError{
			Kind:    KindInternal,
			Message: "internal server error",
			TaskID:  taskID,
		}
	}
}
