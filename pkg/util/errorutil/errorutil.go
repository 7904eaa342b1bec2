package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the relay, command and admin layers.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotTicketChannel  = "NOT_TICKET_CHANNEL"
	CodeInvalidTopic      = "INVALID_TICKET_TOPIC"
	CodeRemoteForbidden   = "REMOTE_FORBIDDEN"
	CodeRemoteNotFound    = "REMOTE_NOT_FOUND"
	CodeRemoteRateLimited = "REMOTE_RATE_LIMITED"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewConfigError(key string, err error) error {
	return &DomainError{
		Code:       CodeConfigInvalid,
		Message:    fmt.Sprintf("invalid %s", key),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"key": key},
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewNotTicketChannel marks a routing miss: the channel is not under the ticket category.
func NewNotTicketChannel(channelID string) error {
	return NewDomainError(CodeNotTicketChannel, "not a ticket channel", http.StatusNotFound,
		map[string]any{"channel_id": channelID})
}

// NewInvalidTopic reports a ticket channel whose topic no longer holds a user ID.
func NewInvalidTopic(channelID, topic string) error {
	return NewDomainError(CodeInvalidTopic, "ticket channel topic is not a user id", http.StatusUnprocessableEntity,
		map[string]any{"channel_id": channelID, "topic": topic})
}

// NewRemoteError classifies a failed platform API call by the HTTP status it returned.
// A zero status means the call never produced a response.
func NewRemoteError(op string, status int, err error) error {
	code := CodeRemoteUnavailable
	httpStatus := http.StatusBadGateway
	switch status {
	case http.StatusForbidden, http.StatusUnauthorized:
		code, httpStatus = CodeRemoteForbidden, http.StatusForbidden
	case http.StatusNotFound:
		code, httpStatus = CodeRemoteNotFound, http.StatusNotFound
	case http.StatusTooManyRequests:
		code, httpStatus = CodeRemoteRateLimited, http.StatusTooManyRequests
	}
	return &DomainError{
		Code:       code,
		Message:    op + " failed",
		HTTPStatus: httpStatus,
		Details:    map[string]any{"op": op, "status": status},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

func MapError(err error) error {
	return ToDomainError(err)
}
