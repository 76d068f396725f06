package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Origins for the account management web app; mobile clients are not
// subject to CORS.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://app.plateful.co",
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
