package utils

import (
	"context"
	"errors"

	"tenant-portal/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrTenantIDNotFound     = errors.New("tenantID not found in context")
	ErrTenantIDNotString    = errors.New("tenantID in context is not a string")
	ErrApplicationNotFound  = errors.New("application not found in context")
	ErrApplicationNotString = errors.New("application in context is not a string")
	ErrRequestIDNotFound    = errors.New("requestID not found in context")
	ErrRequestIDNotString   = errors.New("requestID in context is not a string")
)

func stringFromContext(ctx context.Context, key interface{}, missing, wrongType error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", missing
	}
	s, ok := val.(string)
	if !ok {
		return "", wrongType
	}
	return s, nil
}

// GetTenantIDFromContext retrieves the tenant subdomain from the context.
// It returns the tenant ID and an error if the tenant ID is not found or is not a string.
func GetTenantIDFromContext(ctx context.Context) (string, error) {
	return stringFromContext(ctx, contextkeys.TenantIDKey, ErrTenantIDNotFound, ErrTenantIDNotString)
}

// GetApplicationFromContext retrieves the selected application name from the context.
func GetApplicationFromContext(ctx context.Context) (string, error) {
	return stringFromContext(ctx, contextkeys.ApplicationKey, ErrApplicationNotFound, ErrApplicationNotString)
}

// GetRequestIDFromContext retrieves the request ID from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	return stringFromContext(ctx, contextkeys.RequestIDKey, ErrRequestIDNotFound, ErrRequestIDNotString)
}

// Context builder functions

// WithTenantID adds tenant ID to context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextkeys.TenantIDKey, tenantID)
}

// WithApplication adds the application name to context
func WithApplication(ctx context.Context, application string) context.Context {
	return context.WithValue(ctx, contextkeys.ApplicationKey, application)
}

// WithUserID adds user ID to context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithComponent adds component name to context
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextkeys.ComponentKey, component)
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}

// GetTenantIDOrDefault retrieves the tenant ID from context or returns a default value
func GetTenantIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetTenantIDFromContext(ctx); err == nil {
		return v
	}
	return def
}

// GetRequestIDOrDefault retrieves the request ID from context or returns a default value
func GetRequestIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetRequestIDFromContext(ctx); err == nil {
		return v
	}
	return def
}
