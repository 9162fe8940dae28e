package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/claryon/docqa/internal/api"
	"github.com/claryon/docqa/internal/domain"
)

type contextKey string

// BearerAuth rejects requests whose Authorization header does not carry the
// configured static token. The comparison is constant-time.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			presented := strings.TrimPrefix(authHeader, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				api.HandleError(w, domain.ErrInvalidBearerToken)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
