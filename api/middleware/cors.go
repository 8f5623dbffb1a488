package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

const localDevOrigin = "http://localhost:3000"

// CORSOrigins returns the storefront origin plus the local dev server outside production.
func CORSOrigins(frontendBaseURL string, prod bool) []string {
	origins := []string{}
	if base := strings.TrimRight(strings.TrimSpace(frontendBaseURL), "/"); base != "" {
		origins = append(origins, base)
	}
	if !prod && !slices.Contains(origins, localDevOrigin) {
		origins = append(origins, localDevOrigin)
	}
	return origins
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Session-Id", "X-Requested-With"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
