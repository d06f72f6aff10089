package middleware

import (
	"net/http"

	"github.com/openrelay/gatewaysuite/internal/reqctx"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns a request id from the incoming header, or generates one,
// and attaches both it and the X-User-Id header to the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = reqctx.NewRequestID()
		}
		ctx := reqctx.WithRequestID(r.Context(), id)
		if uid := r.Header.Get("X-User-Id"); uid != "" {
			ctx = reqctx.WithUserID(ctx, uid)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
