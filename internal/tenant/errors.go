package tenant

import (
	"errors"
	"fmt"
	"net/http"
)

// Resolution failures carry the status the middleware should answer
// with. Client bodies stay generic; the tenant id only appears in logs.
type Error struct {
	Status   int
	TenantID string
	Message  string
}

func (e *Error) Error() string {
	if e.TenantID != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.TenantID)
	}
	return e.Message
}

// ClientMessage is the safe body detail for HTTP responses.
func (e *Error) ClientMessage() string {
	return e.Message
}

func NotFound(tenantID string) *Error {
	return &Error{Status: http.StatusNotFound, TenantID: tenantID, Message: "Tenant not found"}
}

func Inactive(tenantID string) *Error {
	return &Error{Status: http.StatusForbidden, TenantID: tenantID, Message: "Tenant is not active"}
}

func AccessDenied(tenantID string) *Error {
	return &Error{Status: http.StatusForbidden, TenantID: tenantID, Message: "Access to tenant denied"}
}

func MissingContext() *Error {
	return &Error{Status: http.StatusBadRequest, Message: "Tenant could not be determined"}
}

// ValidationUnavailable covers validation being required with no store
// to ask. Unvalidated tenant ids are never accepted.
func ValidationUnavailable() *Error {
	return &Error{Status: http.StatusServiceUnavailable, Message: "Tenant validation unavailable"}
}

// AsError unwraps a tenant error from err, if present.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
