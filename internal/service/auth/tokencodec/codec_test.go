package tokencodec

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamforge/teamforge/internal/models"
)

func testConfig() Config {
	return Config{
		Access:  KeyConfig{Key: "access-key"},
		Refresh: KeyConfig{Key: "refresh-key"},
		Verify:  KeyConfig{Key: "verify-key"},
		Reset:   KeyConfig{Key: "reset-key"},
	}
}

func testUser() models.PublicUser {
	return models.PublicUser{
		ID:       uuid.New(),
		Username: "abc",
		Email:    "a@b.com",
	}
}

// flipSignatureByte corrupts the last byte of the token signature keeping the
// token well formed
func flipSignatureByte(token string) string {
	last := token[len(token)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	return token[:len(token)-1] + string(replacement)
}

func Test_Codec(t *testing.T) {
	t.Parallel()

	t.Run("new requires every key", func(t *testing.T) {
		for _, set := range []func(*Config){
			func(c *Config) { c.Access.Key = "" },
			func(c *Config) { c.Refresh.Key = "" },
			func(c *Config) { c.Verify.Key = "" },
			func(c *Config) { c.Reset.Key = "" },
		} {
			cfg := testConfig()
			set(&cfg)
			_, err := New(cfg)
			require.Error(t, err, "codec must not start with a missing key")
		}
	})

	t.Run("new defaults", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)

		require.Equal(t, defaultAccessTTL, c.access.TTL)
		require.Equal(t, defaultRefreshTTL, c.refresh.TTL)
		require.Equal(t, defaultVerifyTTL, c.verify.TTL)
		require.Equal(t, defaultResetTTL, c.reset.TTL)
		require.Equal(t, defaultSigningMethod, c.alg.Alg())
		require.False(t, c.sliding)
	})

	t.Run("access round trip", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)
		user := testUser()

		issued, err := c.MintAccess(user)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(defaultAccessTTL), issued.ExpiresAt, 2*time.Second)

		parsed, err := c.ParseAccess(issued.Value)
		require.NoError(t, err)
		assert.Equal(t, user.ID, parsed.ID)
		assert.Equal(t, "abc", parsed.Username)
	})

	t.Run("access payload carries no password material", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)

		issued, err := c.MintAccess(testUser())
		require.NoError(t, err)

		token, err := jwt.Parse(issued.Value, func(t *jwt.Token) (any, error) {
			return []byte("access-key"), nil
		})
		require.NoError(t, err)

		claims := token.Claims.(jwt.MapClaims)
		userClaim, ok := claims["user"].(map[string]any)
		require.True(t, ok, "access token should embed the user snapshot")
		assert.Equal(t, "abc", userClaim["username"])
		for key := range userClaim {
			assert.NotContains(t, strings.ToLower(key), "password")
		}
	})

	t.Run("tampered access token rejected", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)

		issued, err := c.MintAccess(testUser())
		require.NoError(t, err)

		_, err = c.ParseAccess(flipSignatureByte(issued.Value))
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired access token rejected", func(t *testing.T) {
		now := time.Now()
		cfg := testConfig()
		cfg.Now = func() time.Time { return now }

		c, err := New(cfg)
		require.NoError(t, err)

		issued, err := c.MintAccess(testUser())
		require.NoError(t, err)

		// Move the clock past the access TTL
		now = now.Add(defaultAccessTTL + time.Minute)

		_, err = c.ParseAccess(issued.Value)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("refresh round trip", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)
		userID := uuid.New()

		token, err := c.MintRefresh(userID)
		require.NoError(t, err)

		parsed, err := c.ParseRefresh(token)
		require.NoError(t, err)
		assert.Equal(t, userID, parsed)
	})

	t.Run("refresh without sliding never expires", func(t *testing.T) {
		now := time.Now()
		cfg := testConfig()
		cfg.Now = func() time.Time { return now }

		c, err := New(cfg)
		require.NoError(t, err)

		token, err := c.MintRefresh(uuid.New())
		require.NoError(t, err)

		// Even years later the signature alone decides validity
		now = now.Add(3 * 365 * 24 * time.Hour)

		_, err = c.ParseRefresh(token)
		require.NoError(t, err, "refresh token without sliding policy has no cryptographic expiry")
	})

	t.Run("refresh with sliding embeds expiry", func(t *testing.T) {
		now := time.Now()
		cfg := testConfig()
		cfg.RefreshSliding = true
		cfg.Refresh.TTL = time.Hour
		cfg.Now = func() time.Time { return now }

		c, err := New(cfg)
		require.NoError(t, err)

		token, err := c.MintRefresh(uuid.New())
		require.NoError(t, err)

		_, err = c.ParseRefresh(token)
		require.NoError(t, err)

		now = now.Add(2 * time.Hour)

		_, err = c.ParseRefresh(token)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("key families are isolated", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)
		userID := uuid.New()

		refresh, err := c.MintRefresh(userID)
		require.NoError(t, err)
		reset, err := c.MintReset(userID)
		require.NoError(t, err)

		// A reset token must not pass as a refresh token and vice versa
		_, err = c.ParseRefresh(reset)
		require.ErrorIs(t, err, ErrTokenInvalid)
		_, err = c.ParseReset(refresh)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("verification round trip", func(t *testing.T) {
		c, err := New(testConfig())
		require.NoError(t, err)

		token, err := c.MintVerification("a@b.com")
		require.NoError(t, err)

		email, err := c.ParseVerification(token)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", email)
	})

	t.Run("reset token expires", func(t *testing.T) {
		now := time.Now()
		cfg := testConfig()
		cfg.Reset.TTL = 30 * time.Minute
		cfg.Now = func() time.Time { return now }

		c, err := New(cfg)
		require.NoError(t, err)

		token, err := c.MintReset(uuid.New())
		require.NoError(t, err)

		now = now.Add(31 * time.Minute)

		_, err = c.ParseReset(token)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})
}
