package middleware

import (
	"net/http"

	"github.com/teamforge/teamforge/internal/handlers/render"
	"github.com/teamforge/teamforge/internal/handlers/userctx"
	"github.com/teamforge/teamforge/internal/models"
)

// Header carrying the access token on guarded routes
const AuthTokenHeader = "X-Auth-Token"

type authService interface {
	// Validate the access token and return the user embedded in it
	CheckAccess(tokenString string) (models.PublicUser, error)
}

// AuthMiddleware guards routes with the stateless access token check. No
// store is touched here, a deleted session stays valid until its access
// token expires.
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get(AuthTokenHeader)
			if tokenString == "" {
				render.ServiceError(w, "No token provided", http.StatusUnauthorized)
				return
			}

			user, err := as.CheckAccess(tokenString)
			if err != nil {
				render.ServiceError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
