// Package middleware holds the HTTP middleware wrapping every handler:
// CORS headers and request logging. Adapted from the corpus's cors.go.
package middleware

import "net/http"

// CORS sets permissive CORS headers on every response and short-circuits
// OPTIONS requests to 200, matching the spec's "all responses include
// CORS headers" requirement.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "POST,GET,OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		header.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
