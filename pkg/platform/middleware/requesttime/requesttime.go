// Package requesttime captures one "now" per request so every timestamp a
// request produces (signedAt, sealedAt, audit events) agrees.
package requesttime

import (
	"net/http"
	"time"

	"civictrust/pkg/requestcontext"
)

// Middleware stamps the request context with the current UTC time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
