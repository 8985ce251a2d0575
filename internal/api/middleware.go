// Package api implements the owner-scoped postjournal REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/starford/postjournal/internal/auth"
)

// AuthMiddleware resolves the request owner and stores it in the context.
//
// With a nil verifier (disabled mode) every request acts as defaultOwner.
// Otherwise the request must carry "Authorization: Bearer <jwt>" signed with
// the server secret; the token subject is the owner.
func AuthMiddleware(verifier *auth.Verifier, defaultOwner string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), defaultOwner)))
				return
			}
			owner, err := verifier.Owner(auth.BearerToken(r))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), owner)))
		})
	}
}

// CORSMiddleware allows the listed browser origins. An empty list allows none.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
