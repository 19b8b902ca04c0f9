// Package api implements the Insighthink REST API using chi.
package api

import (
	"net/http"

	"github.com/starford/insighthink/internal/auth"
)

// RequireUser rejects requests without a signed-in user. It must run after
// the session middleware.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFrom(r.Context()) == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
