package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for the portal's failure domains
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION_ERROR"
	ErrorTypeInfrastructure   ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeUnauthenticated  ErrorType = "UNAUTHENTICATED"
	ErrorTypeEntitlement      ErrorType = "ENTITLEMENT"
	ErrorTypeTransport        ErrorType = "TRANSPORT"
	ErrorTypeMalformedMessage ErrorType = "MALFORMED_MESSAGE"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeInternal         ErrorType = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConnected       = errors.New("realtime channel is not connected")
)

// AppError represents a custom application error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	HTTPCode  int                    `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewInfrastructureError creates an infrastructure error
func NewInfrastructureError(message string) *AppError {
	return NewAppError(ErrorTypeInfrastructure, message, http.StatusInternalServerError)
}

// NewUnauthenticatedError marks a request the backend rejected for missing or invalid credentials
func NewUnauthenticatedError(message string) *AppError {
	return NewAppError(ErrorTypeUnauthenticated, message, http.StatusUnauthorized).WithCause(ErrUnauthorized)
}

// NewEntitlementError marks a valid session whose tenant lost access, e.g. an expired trial
func NewEntitlementError(message string) *AppError {
	return NewAppError(ErrorTypeEntitlement, message, http.StatusForbidden).WithCause(ErrForbidden)
}

// NewTransportError creates a network or protocol level error
func NewTransportError(message string) *AppError {
	return NewAppError(ErrorTypeTransport, message, http.StatusBadGateway)
}

// NewMalformedMessageError creates an error for an undecodable realtime frame or API body
func NewMalformedMessageError(message string) *AppError {
	return NewAppError(ErrorTypeMalformedMessage, message, http.StatusUnprocessableEntity)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message, http.StatusInternalServerError)
}

// WrapError wraps an error with context
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

func typeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrorTypeNotFound
	}
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsUnauthenticated checks if an error means the credentials were rejected
func IsUnauthenticated(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrorTypeUnauthenticated
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired)
}

// IsEntitlement checks if an error means the tenant is not entitled to the resource
func IsEntitlement(err error) bool {
	if t, ok := typeOf(err); ok {
		return t == ErrorTypeEntitlement
	}
	return errors.Is(err, ErrForbidden)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeTransport
}

// IsMalformedMessage checks if an error came from an undecodable payload
func IsMalformedMessage(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeMalformedMessage
}
