// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts bearer tokens and attaches the resolved Identity to the request context

package auth

import (
	"net/http"
	"strings"
)

// ExtractBearerToken extracts a bearer token from an Authorization header
// value. Returns the token and an error message (empty if successful).
func ExtractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// TokenFromRequest resolves the bearer credential for a request. The
// Authorization header wins; the "token" query parameter is accepted as a
// fallback because browser websocket clients cannot set headers on upgrade
// requests.
func TokenFromRequest(r *http.Request) (string, string) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return ExtractBearerToken(authHeader)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, ""
	}
	return "", "missing credentials"
}

// Middleware creates an HTTP middleware that extracts and validates bearer
// tokens, attaching the resolved Identity to the request context. Requests
// without a valid token are rejected with 401 before reaching the handler.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := TokenFromRequest(r)
			if errMsg != "" {
				unauthorized(w, errMsg)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + msg + `"}`))
}
