package auth

import "net/http"

// Kind enumerates authentication/authorization failure classes. Each kind
// carries the boundary status code and a generic client-safe message; the
// specific reason stays in server-side logs only.
type Kind int

const (
	KindMissingToken Kind = iota
	KindInvalidToken
	KindExpiredToken
	KindForbidden
)

// Error is a classified auth failure. Detail is internal diagnostic text
// and must never be written to a client response.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// ClientMessage is the uninformative message placed in the response body.
func (e *Error) ClientMessage() string {
	switch e.Kind {
	case KindMissingToken:
		return "Not authenticated"
	case KindExpiredToken:
		return "Token has expired"
	case KindInvalidToken:
		return "Invalid authentication token"
	case KindForbidden:
		return "Forbidden"
	}
	return "Authentication error"
}

// ErrorCode is the machine-readable error tag for the response body.
func (e *Error) ErrorCode() string {
	switch e.Kind {
	case KindMissingToken:
		return "missing_token"
	case KindExpiredToken:
		return "token_expired"
	case KindInvalidToken:
		return "invalid_token"
	case KindForbidden:
		return "forbidden"
	}
	return "auth_error"
}

// ErrMissingToken is returned when no credential is present at all.
func ErrMissingToken() *Error {
	return &Error{Kind: KindMissingToken, Detail: "no token provided"}
}

func invalidToken(detail string, err error) *Error {
	return &Error{Kind: KindInvalidToken, Detail: detail, Err: err}
}

func expiredToken(err error) *Error {
	return &Error{Kind: KindExpiredToken, Detail: "token expired", Err: err}
}
