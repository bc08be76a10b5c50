package auth

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/repository/postgres"
	"github.com/teamforge/teamforge/internal/service/auth/tokencodec"
	"github.com/teamforge/teamforge/internal/testutil"
)

// testClock is a controllable clock shared by service and codec
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time          { return c.current }
func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

type testEnv struct {
	service *AuthService
	refresh *postgres.RefreshTokenRepo
	mailer  *testutil.RecordingMailer
	clock   *testClock
}

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin new db transaction and create new AuthService
	// Rollback transaction when test stops
	withTx := func(dbpool *pgxpool.Pool, sliding bool, t *testing.T, fn func(env testEnv)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			userRepo := &postgres.UserRepo{DB: tx}
			refreshRepo := &postgres.RefreshTokenRepo{DB: tx}
			clock := newTestClock()

			codec, err := tokencodec.New(tokencodec.Config{
				Access:         tokencodec.KeyConfig{Key: "test-access-key"},
				Refresh:        tokencodec.KeyConfig{Key: "test-refresh-key", TTL: 24 * time.Hour},
				Verify:         tokencodec.KeyConfig{Key: "test-verify-key"},
				Reset:          tokencodec.KeyConfig{Key: "test-reset-key"},
				RefreshSliding: sliding,
				Now:            clock.Now,
			})
			require.NoError(t, err, "token codec should be created without errors")

			m := &testutil.RecordingMailer{}
			s, err := NewService(Config{Now: clock.Now}, codec, userRepo, refreshRepo, m, nil)
			require.NoError(t, err, "auth service couldn't be started", err)

			fn(testEnv{service: s, refresh: refreshRepo, mailer: m, clock: clock})
		})
	}

	t.Run("new auth service defaults", func(t *testing.T) {
		codec, err := tokencodec.New(tokencodec.Config{
			Access:  tokencodec.KeyConfig{Key: "a"},
			Refresh: tokencodec.KeyConfig{Key: "b"},
			Verify:  tokencodec.KeyConfig{Key: "c"},
			Reset:   tokencodec.KeyConfig{Key: "d"},
		})
		require.NoError(t, err)

		s, err := NewService(Config{}, codec, &postgres.UserRepo{}, &postgres.RefreshTokenRepo{}, nil, nil)
		require.NoError(t, err, "auth service should be created without errors")

		require.Equal(t, BcryptHasher{}, s.hasher, "default hasher should be set to BcryptHasher")
		require.NotNil(t, s.evaluator, "evaluator should be created")
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")

				require.NoError(t, err, "registering new user should be ok")
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
				require.True(t, pair.Refresh.ExpiresAt.IsZero(), "refresh expiry should not be reported without sliding window")

				// The session must be persisted and owned by the new user
				rec, err := env.refresh.Get(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "refresh token should be persisted")
				user, err := env.service.CheckAccess(pair.Access.Value)
				require.NoError(t, err)
				require.Equal(t, user.ID, rec.UserID, "session must belong to the registered user")

				// A verification mail must be sent
				mail, ok := env.mailer.Last()
				require.True(t, ok, "verification mail should be sent")
				require.Equal(t, "verification", mail.Kind)
				require.Equal(t, "mike@example.com", mail.Recipient)
			})
		})

		t.Run("reports invalid fields", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.Register(t.Context(), "mk", "short", "other", "not-an-email")

				require.Error(t, err)
				inputErr, ok := apperrors.AsInvalidInput(err)
				require.True(t, ok, "field errors expected")
				assert.Contains(t, inputErr.Fields, "username")
				assert.Contains(t, inputErr.Fields, "email")
				assert.Contains(t, inputErr.Fields, "password")
			})
		})

		t.Run("fail if username taken", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				_, err = env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "other@example.com")

				require.Error(t, err)
				inputErr, ok := apperrors.AsInvalidInput(err)
				require.True(t, ok)
				assert.Equal(t, "This username is taken", inputErr.Fields["username"])
			})
		})

		t.Run("fail if email taken", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				_, err = env.service.Register(t.Context(), "anna", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")

				require.Error(t, err)
				inputErr, ok := apperrors.AsInvalidInput(err)
				require.True(t, ok)
				assert.Equal(t, "This email is used by another account", inputErr.Fields["email"])
			})
		})

		t.Run("mail failure does not fail registration", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				env.mailer.FailWith = assert.AnError

				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")

				require.NoError(t, err, "registration must survive a broken mailer")
				require.NotEmpty(t, pair.Access.Value)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		register := func(t *testing.T, env testEnv) {
			t.Helper()
			_, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
			require.NoError(t, err)
		}

		t.Run("by username ok", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				register(t, env)

				pair, err := env.service.Login(t.Context(), "mike", "StrongEnoughPassword")

				require.NoError(t, err)
				require.NotEmpty(t, pair.Access.Value)
				require.NotEmpty(t, pair.Refresh.Value)
			})
		})

		t.Run("by email ok", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				register(t, env)

				pair, err := env.service.Login(t.Context(), "mike@example.com", "StrongEnoughPassword")

				require.NoError(t, err)
				require.NotEmpty(t, pair.Access.Value)
			})
		})

		tests := []struct {
			name          string
			login         string
			password      string
			expectedField string
		}{
			{
				name:          "fail if wrong password",
				login:         "mike",
				password:      "wrong-password",
				expectedField: "password",
			},
			{
				name:          "fail if user not exists",
				login:         "not-existed-user",
				password:      "StrongEnoughPassword",
				expectedField: "username",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(pg.Pool, false, t, func(env testEnv) {
					register(t, env)

					_, err := env.service.Login(t.Context(), tt.login, tt.password)

					require.Error(t, err)
					inputErr, ok := apperrors.AsInvalidInput(err)
					require.True(t, ok, "login failures should be reported as field errors")
					assert.Contains(t, inputErr.Fields, tt.expectedField)
				})
			})
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("returns new access token only", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				env.clock.Advance(time.Minute)
				access, err := env.service.Refresh(t.Context(), pair.Refresh.Value)

				require.NoError(t, err)
				require.NotEmpty(t, access.Value)
				require.NotEqual(t, pair.Access.Value, access.Value, "new access token should be different")

				// Same refresh token stays valid, only its last used time moves
				rec, err := env.refresh.Get(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "refresh token must not be rotated")
				require.WithinDuration(t, env.clock.Now(), rec.LastUsed, time.Second, "last used should move on refresh")
			})
		})

		t.Run("can be used many times", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				_, err = env.service.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				_, err = env.service.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "refresh token is reusable until it expires")
			})
		})

		t.Run("fail if unknown token", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.Refresh(t.Context(), "never-issued")

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("sliding window expires idle session", func(t *testing.T) {
			withTx(pg.Pool, true, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)
				require.False(t, pair.Refresh.ExpiresAt.IsZero(), "sliding refresh token should report its expiry")

				// Idle longer than the window
				env.clock.Advance(25 * time.Hour)

				_, err = env.service.Refresh(t.Context(), pair.Refresh.Value)
				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)

				// Expired record must be deleted from the store
				_, err = env.refresh.Get(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "expired token should be dropped on sight")
			})
		})

		t.Run("sliding window keeps used session alive", func(t *testing.T) {
			withTx(pg.Pool, true, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				env.clock.Advance(20 * time.Hour)

				_, err = env.service.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "token used inside the window must stay alive")
			})
		})

		t.Run("without sliding window age does not matter", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				env.clock.Advance(1000 * time.Hour)

				_, err = env.service.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "without sliding window the session lives until logout")
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("deletes the session", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				err = env.service.Logout(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)

				_, err = env.service.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "session must be gone after logout")
			})
		})

		t.Run("fail if already logged out", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				require.NoError(t, env.service.Logout(t.Context(), pair.Refresh.Value))

				err = env.service.Logout(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})
	})

	t.Run("VerifyEmail", func(t *testing.T) {
		t.Run("confirms account and issues tokens", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				mail, ok := env.mailer.Last()
				require.True(t, ok, "verification mail should be recorded")

				pair, err := env.service.VerifyEmail(t.Context(), mail.Token)
				require.NoError(t, err)

				user, err := env.service.CheckAccess(pair.Access.Value)
				require.NoError(t, err)
				require.True(t, user.EmailConfirmed, "issued access token should carry the confirmed flag")
			})
		})

		t.Run("fail on garbage token", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.VerifyEmail(t.Context(), "garbage")

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrVerifyTokenInvalid)
			})
		})

		t.Run("fail on expired token", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				_, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)
				mail, _ := env.mailer.Last()

				env.clock.Advance(25 * time.Hour)

				_, err = env.service.VerifyEmail(t.Context(), mail.Token)
				require.ErrorIs(t, err, apperrors.ErrVerifyTokenInvalid)
			})
		})
	})

	t.Run("SendVerificationMail", func(t *testing.T) {
		t.Run("fails when already confirmed", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)
				mail, _ := env.mailer.Last()
				_, err = env.service.VerifyEmail(t.Context(), mail.Token)
				require.NoError(t, err)

				user, err := env.service.CheckAccess(pair.Access.Value)
				require.NoError(t, err)

				err = env.service.SendVerificationMail(t.Context(), user.ID)
				require.ErrorIs(t, err, apperrors.ErrEmailConfirmed)
			})
		})
	})

	t.Run("CheckAccess", func(t *testing.T) {
		t.Run("rejects tampered token", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				tampered := pair.Access.Value[:len(pair.Access.Value)-2] + "xx"

				_, err = env.service.CheckAccess(tampered)
				require.ErrorIs(t, err, apperrors.ErrInvalidAccessToken)
			})
		})

		t.Run("rejects expired token", func(t *testing.T) {
			withTx(pg.Pool, false, t, func(env testEnv) {
				pair, err := env.service.Register(t.Context(), "mike", "StrongEnoughPassword", "StrongEnoughPassword", "mike@example.com")
				require.NoError(t, err)

				env.clock.Advance(16 * time.Minute)

				_, err = env.service.CheckAccess(pair.Access.Value)
				require.ErrorIs(t, err, apperrors.ErrInvalidAccessToken)
			})
		})
	})
}
