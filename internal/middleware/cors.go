// Package middleware provides reusable HTTP middleware for the Tripwit API.
package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// preflightMaxAge is how long, in seconds, browsers may cache a preflight.
const preflightMaxAge = 600

// NewCORSHandler lets browser clients at allowedOrigins call the API. A single
// "*" entry allows any origin.
//
// Exports name their file in Content-Disposition and every response carries
// the request id, so both are exposed to scripts.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", chimiddleware.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", chimiddleware.RequestIDHeader},
		MaxAge:         preflightMaxAge,
	}).Handler
}
