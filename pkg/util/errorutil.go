package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the engine core.
const (
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeMissingResolution     = "MISSING_RESOLUTION"
	CodeInvalidAssignee       = "INVALID_ASSIGNEE"
	CodeCalendarMisconfigured = "CALENDAR_MISCONFIGURED"
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInvalidTransition rejects a status change not permitted by the
// transition table.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot transition ticket from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

// NewMissingResolution rejects a RESOLVED request without resolution text.
func NewMissingResolution() error {
	return NewDomainError(CodeMissingResolution,
		"resolution text is required to resolve a ticket",
		http.StatusBadRequest, nil)
}

// NewInvalidAssignee rejects assignment to a non-staff or inactive account.
func NewInvalidAssignee(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidAssignee, message, http.StatusConflict, details)
}

// NewCalendarMisconfiguration is a startup-time failure; the calculator is
// never constructed over an invalid calendar.
func NewCalendarMisconfiguration(message string) error {
	return NewDomainError(CodeCalendarMisconfigured, message, http.StatusInternalServerError, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
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
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
