package testutil

import (
	"context"
	"net/http"
)

// csrfTokenKey matches the key used by gorilla/csrf internally.
const csrfTokenKey = "gorilla.csrf.Token"

// WithCSRFToken adds a fixed CSRF token to the request context so rendered
// forms carry a token without the csrf middleware in front of the handler.
func WithCSRFToken(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), csrfTokenKey, "test-csrf-token-12345")
	return r.WithContext(ctx)
}

// NewAuthenticatedRequestWithCSRF creates a request with both an operator
// and a CSRF token in context, for handlers that render forms.
func NewAuthenticatedRequestWithCSRF(method, target string, user TestUser) *http.Request {
	req := NewAuthenticatedRequest(method, target, user)
	return WithCSRFToken(req)
}
