/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * User-facing authentication is delegated to the platform gateway; this service
 * only guards its mutating endpoints with a shared internal API key so that
 * lifecycle events can come exclusively from trusted field-agent backends.
 *
 * @dependencies
 * - crypto/subtle, net/http, strings: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// InternalAPIKeyHeader is the header trusted callers present on mutating routes.
const InternalAPIKeyHeader = "X-Internal-Api-Key"

// InternalAPIKeyMiddleware creates a middleware that requires the shared
// internal API key on every request it wraps. Comparison is constant-time.
func InternalAPIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(apiKey))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(strings.TrimSpace(r.Header.Get(InternalAPIKeyHeader)))
			if len(expected) == 0 ||
				len(presented) != len(expected) ||
				subtle.ConstantTimeCompare(presented, expected) != 1 {
				http.Error(w, "Invalid or missing internal API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
