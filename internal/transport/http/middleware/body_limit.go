package middleware

import "net/http"

// BodyLimit caps how much of a request body handlers will read.
// Oversized bodies surface as a MaxBytesError from the JSON decoder,
// which handlers report as an invalid payload.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
