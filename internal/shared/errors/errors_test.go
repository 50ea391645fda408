package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Behavior(t *testing.T) {
	err := NewValidationError("invalid input").WithCode("VAL001").WithDetail("field", "email").WithComponent("session")
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "VAL001", err.Code)
	assert.Equal(t, "session", err.Component)
	assert.Equal(t, "email", err.Details["field"])
	assert.Equal(t, "invalid input", err.Error())
}

func TestAppError_WithCause_Unwrap(t *testing.T) {
	cause := ErrNotFound
	err := NewNotFoundError("snapshot").WithCause(cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "snapshot not found: resource not found", err.Error())
}

func TestUnauthenticatedAndEntitlement(t *testing.T) {
	unauth := NewUnauthenticatedError("token rejected")
	assert.Equal(t, http.StatusUnauthorized, unauth.HTTPCode)
	assert.True(t, IsUnauthenticated(unauth))
	assert.False(t, IsEntitlement(unauth))
	assert.True(t, errors.Is(unauth, ErrUnauthorized))

	ent := NewEntitlementError("your free trial has expired")
	assert.Equal(t, http.StatusForbidden, ent.HTTPCode)
	assert.True(t, IsEntitlement(ent))
	assert.False(t, IsUnauthenticated(ent))
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("fetch profile: %w", NewEntitlementError("expired"))
	assert.True(t, IsEntitlement(wrapped))

	assert.True(t, IsTransport(fmt.Errorf("dial: %w", NewTransportError("refused"))))
	assert.True(t, IsMalformedMessage(NewMalformedMessageError("bad frame")))
	assert.True(t, IsUnauthenticated(ErrTokenExpired))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	original := NewTransportError("boom")
	assert.Same(t, original, WrapError(original, "ignored"))

	plain := errors.New("disk full")
	wrapped := WrapError(plain, "persist snapshot")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.ErrorIs(t, wrapped, plain)
}
