package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gatewaylabs/payment-gateway/internal/handler"
	"github.com/gatewaylabs/payment-gateway/internal/logging"
)

// Recovery turns a panicking handler into a 500 so one bad request
// cannot take the listener down. The stack goes to the log, never to
// the caller.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logging.FromContext(r.Context()).Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
				"stack", string(debug.Stack()),
			)
			handler.RespondAppError(w, handler.ErrInternalError, nil)
		}()
		next.ServeHTTP(w, r)
	})
}
