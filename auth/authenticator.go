package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: Authenticate returns (nil, error) for internal errors and
//     (Result, nil) for authentication failures; check Result.Authenticated.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if this authenticator can handle the request.
	Supports(ctx context.Context, req *Request) bool

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Request carries the credentials of one authentication attempt.
type Request struct {
	// Headers contains HTTP headers (Authorization, X-API-Key, etc.)
	Headers http.Header
}

// NewRequest builds a Request from an HTTP request.
func NewRequest(r *http.Request) *Request {
	return &Request{Headers: r.Header}
}

// Header returns the first value for a header, or empty string.
func (r *Request) Header(key string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// Result is the result of an authentication attempt.
type Result struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// Identity is set when Authenticated is true.
	Identity *Identity

	// Error is set when Authenticated is false.
	Error error

	// Method indicates which method was used.
	Method Method
}

// Success creates a successful authentication result.
func Success(id *Identity) *Result {
	return &Result{Authenticated: true, Identity: id, Method: id.Method}
}

// Failure creates a failed authentication result.
func Failure(err error, method Method) *Result {
	return &Result{Error: err, Method: method}
}
