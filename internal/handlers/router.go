package handlers

import (
	"net/http"

	"github.com/teamforge/teamforge/internal/handlers/middleware"
	"github.com/teamforge/teamforge/internal/logger"
	"github.com/teamforge/teamforge/internal/models"
)

// accessChecker is the slice of the auth service the guard needs
type accessChecker interface {
	CheckAccess(tokenString string) (models.PublicUser, error)
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth authService,
	checker accessChecker,
	reset resetService,
	user userService,
	team teamService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(checker)

	root := http.NewServeMux()

	// Every prefix is mounted twice so that requests to the bare prefix hit
	// the submux "/{$}" patterns instead of the ServeMux 301 redirect
	mount := func(prefix string, h http.Handler) {
		root.Handle(prefix, http.StripPrefix(prefix, h))
		root.Handle(prefix+"/", http.StripPrefix(prefix, h))
	}

	mount("/auth", NewAuth(auth).Handler())
	mount("/api/reset", NewReset(reset).Handler())
	mount("/api/user", withAuth(NewUser(user).Handler()))
	mount("/api/team", withAuth(NewTeam(team).Handler()))

	return chain(root,
		middleware.LoggerMiddleware(logger),
	)
}
