package middleware

import "net/http"

// Chain applies middleware in order, first to last.
//
// Example:
//
//	handler := Chain(mux,
//	    RequestLogging,        // Executes first
//	    AuthMiddleware(...),   // Executes second
//	)
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	// Apply in reverse so execution follows the order given
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
