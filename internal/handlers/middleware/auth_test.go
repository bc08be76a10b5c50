package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teamforge/teamforge/internal/handlers/userctx"
	"github.com/teamforge/teamforge/internal/models"
)

// Allow to use a function as access checker
type checkFunc func(tokenString string) (models.PublicUser, error)

func (f checkFunc) CheckAccess(tokenString string) (models.PublicUser, error) {
	return f(tokenString)
}

func TestAuthMiddleware(t *testing.T) {
	// Simple handler that try to get user from context
	// If ok write it username to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set user or write error to response
		user, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(user.Username))
		require.NoError(t, err, "should write username to response")
	})

	t.Run("auth ok", func(t *testing.T) {
		// Checker that always return ok
		middleware := AuthMiddleware(checkFunc(func(tokenString string) (models.PublicUser, error) {
			require.Equal(t, "some-token", tokenString, "token should be taken from the auth header")
			return models.PublicUser{Username: "test-user"}, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		req, err := http.NewRequest("GET", srv.URL+"/test", nil)
		require.NoError(t, err)
		req.Header.Set(AuthTokenHeader, "some-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, "test-user", string(body), "should return username in response")
	})

	t.Run("no token", func(t *testing.T) {
		middleware := AuthMiddleware(checkFunc(func(tokenString string) (models.PublicUser, error) {
			t.Fatal("checker must not be called without a token")
			return models.PublicUser{}, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "No token provided"
			}`,
			string(body),
		)
	})

	t.Run("auth fail", func(t *testing.T) {
		// Checker that always fails
		middleware := AuthMiddleware(checkFunc(func(tokenString string) (models.PublicUser, error) {
			return models.PublicUser{}, errors.New("fuck off!")
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		req, err := http.NewRequest("GET", srv.URL+"/test", nil)
		require.NoError(t, err)
		req.Header.Set(AuthTokenHeader, "tampered-token")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Invalid token"
			}`,
			string(body),
		)
	})
}
