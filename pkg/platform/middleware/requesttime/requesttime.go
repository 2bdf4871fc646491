// Package requesttime pins one "now" per HTTP request so expiry checks,
// stored timestamps and audit records within a request agree.
package requesttime

import (
	"net/http"
	"time"

	"intromarket/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
