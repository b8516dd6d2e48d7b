package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "INVALID_REQUEST"
	ErrNotFound                ErrorCode = "NOT_FOUND"
	ErrConflict                ErrorCode = "CONFLICT"
	ErrInvalidTransition       ErrorCode = "INVALID_TRANSITION"
	ErrCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"
	ErrInternalServer          ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Is reports whether err carries the given error code. Engine workers use this
// to distinguish expected compare-and-swap conflicts from genuine failures.
func Is(err error, code ErrorCode) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrInvalidTransition:
			return http.StatusConflict
		case ErrInvalidRequest:
			return http.StatusBadRequest
		case ErrCollaboratorUnavailable:
			return http.StatusServiceUnavailable
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
