package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// RequireOperator guards the admin surface with a shared operator key,
// verified against a bcrypt hash so the key itself never lives in config.
// An empty hash disables the surface outright.
func RequireOperator(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, "admin surface disabled", http.StatusForbidden)
				return
			}
			key := r.Header.Get("X-Operator-Key")
			if key == "" {
				http.Error(w, "missing operator key", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				http.Error(w, "invalid operator key", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
