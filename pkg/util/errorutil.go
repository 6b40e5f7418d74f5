package util

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError standardizes failures surfaced by the API layer.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError constructs an APIError.
func NewAPIError(code, message string, status int, err error) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NewUnauthorized marks an authorization failure reported by the server.
func NewUnauthorized(message string) error {
	return NewAPIError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewRefreshFailed marks a failed credential refresh; callers must not retry.
func NewRefreshFailed(err error) error {
	return NewAPIError("REFRESH_FAILED", "credential refresh failed", http.StatusUnauthorized, err)
}

// NewNetworkError marks a transport-level failure, not retried by this layer.
func NewNetworkError(err error) error {
	return NewAPIError("NETWORK_ERROR", "network error", 0, err)
}

// NewServerError marks a non-2xx response other than an authorization failure.
func NewServerError(status int, message string) error {
	if message == "" {
		message = fmt.Sprintf("unexpected status: %d", status)
	}
	return NewAPIError("SERVER_ERROR", message, status, nil)
}

// ToAPIError converts generic errors to APIError.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{
		Code:    "NETWORK_ERROR",
		Message: "network error",
		Err:     err,
	}
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	return hasCode(err, "UNAUTHORIZED")
}

// IsRefreshFailed reports whether err is a failed refresh outcome.
func IsRefreshFailed(err error) bool {
	return hasCode(err, "REFRESH_FAILED")
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	return hasCode(err, "NETWORK_ERROR")
}

// IsServer reports whether err is a non-auth server failure.
func IsServer(err error) bool {
	return hasCode(err, "SERVER_ERROR")
}
