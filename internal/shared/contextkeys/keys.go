package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "tenant-portal context key " + string(c)
}

// TenantIDKey is the key for the resolved tenant subdomain in context.Context
const TenantIDKey = contextKey("tenantID")

// ApplicationKey is the key for the selected application name
const ApplicationKey = contextKey("application")

// UserIDKey is the key for the authenticated user ID
const UserIDKey = contextKey("userID")

// RequestIDKey is the key for the outgoing request correlation ID
const RequestIDKey = contextKey("requestID")

// ComponentKey is the key for the component emitting a log line
const ComponentKey = contextKey("component")

// OperationKey is the key for the operation being performed
const OperationKey = contextKey("operation")
