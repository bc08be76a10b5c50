// Package tokencodec creates and verifies the signed tokens the service
// issues: access, refresh, email verification and password reset. Every
// purpose has its own signing key and lifetime, so rotating or leaking one
// key family never invalidates the others.
package tokencodec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/models"
)

const (
	defaultSigningMethod = "HS256"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultVerifyTTL  = 24 * time.Hour
	defaultResetTTL   = time.Hour
)

// KeyConfig is one key family: a signing key and the lifetime of tokens
// signed with it
type KeyConfig struct {
	Key string
	TTL time.Duration
}

type Config struct {
	Access KeyConfig
	Verify KeyConfig
	Reset  KeyConfig

	// Refresh tokens carry an embedded expiry only when the sliding window
	// policy is on. Without it a refresh token lives until its record is
	// deleted from the store.
	Refresh        KeyConfig
	RefreshSliding bool

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Clock override for tests
	Now func() time.Time
}

type AccessClaims struct {
	jwt.RegisteredClaims
	User models.PublicUser `json:"user"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"id"`
}

type VerifyClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type ResetClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"id"`
}

type Codec struct {
	access  KeyConfig
	refresh KeyConfig
	verify  KeyConfig
	reset   KeyConfig

	sliding bool
	alg     jwt.SigningMethod
	now     func() time.Time
}

func New(cfg Config) (*Codec, error) {
	for name, key := range map[string]string{
		"access": cfg.Access.Key, "refresh": cfg.Refresh.Key,
		"verify": cfg.Verify.Key, "reset": cfg.Reset.Key,
	} {
		if key == "" {
			return nil, fmt.Errorf("%s signing key must not be empty", name)
		}
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	setDefaultTTL := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultTTL(&cfg.Access.TTL, defaultAccessTTL)
	setDefaultTTL(&cfg.Refresh.TTL, defaultRefreshTTL)
	setDefaultTTL(&cfg.Verify.TTL, defaultVerifyTTL)
	setDefaultTTL(&cfg.Reset.TTL, defaultResetTTL)

	return &Codec{
		access:  cfg.Access,
		refresh: cfg.Refresh,
		verify:  cfg.Verify,
		reset:   cfg.Reset,
		sliding: cfg.RefreshSliding,
		alg:     jwt.GetSigningMethod(cfg.Alg),
		now:     cfg.Now,
	}, nil
}

// RefreshTTL is the refresh token lifetime, also used as the sliding window
func (c *Codec) RefreshTTL() time.Duration { return c.refresh.TTL }

// RefreshSliding reports whether the sliding window policy is enabled
func (c *Codec) RefreshSliding() bool { return c.sliding }

// MintAccess signs a short lived token with the user snapshot as payload
func (c *Codec) MintAccess(user models.PublicUser) (models.IssuedToken, error) {
	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(c.access.TTL)

	token := jwt.NewWithClaims(c.alg, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		User: user,
	})

	signed, err := token.SignedString([]byte(c.access.Key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// MintRefresh signs a refresh token carrying the owner id. The expiry claim
// is embedded only under the sliding window policy.
func (c *Codec) MintRefresh(userID uuid.UUID) (string, error) {
	now := c.now().Truncate(time.Second)

	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}
	if c.sliding {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.refresh.TTL))
	}

	signed, err := jwt.NewWithClaims(c.alg, claims).SignedString([]byte(c.refresh.Key))
	if err != nil {
		return "", fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return signed, nil
}

// MintVerification signs an email verification token. Nothing is persisted
// for it, the signature and embedded expiry are the whole lifecycle.
func (c *Codec) MintVerification(email string) (string, error) {
	now := c.now().Truncate(time.Second)

	signed, err := jwt.NewWithClaims(c.alg, VerifyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.verify.TTL)),
		},
		Email: email,
	}).SignedString([]byte(c.verify.Key))
	if err != nil {
		return "", fmt.Errorf("error while signing verification token. Err: %w", err)
	}

	return signed, nil
}

// MintReset signs a password reset token carrying the owner id
func (c *Codec) MintReset(userID uuid.UUID) (string, error) {
	now := c.now().Truncate(time.Second)

	signed, err := jwt.NewWithClaims(c.alg, ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.reset.TTL)),
		},
		UserID: userID,
	}).SignedString([]byte(c.reset.Key))
	if err != nil {
		return "", fmt.Errorf("error while signing reset token. Err: %w", err)
	}

	return signed, nil
}

// ErrTokenInvalid is returned on any verification failure. Bad signature,
// malformed token and expired token are indistinguishable on purpose.
var ErrTokenInvalid = errors.New("token invalid or expired")

// ParseAccess verifies an access token and returns the embedded snapshot
func (c *Codec) ParseAccess(tokenString string) (models.PublicUser, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenString, c.access.Key, claims); err != nil {
		return models.PublicUser{}, err
	}
	return claims.User, nil
}

// ParseRefresh verifies a refresh token and returns the owner id
func (c *Codec) ParseRefresh(tokenString string) (uuid.UUID, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenString, c.refresh.Key, claims); err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

// ParseVerification verifies an email verification token and returns the email
func (c *Codec) ParseVerification(tokenString string) (string, error) {
	claims := &VerifyClaims{}
	if err := c.parse(tokenString, c.verify.Key, claims); err != nil {
		return "", err
	}
	return claims.Email, nil
}

// ParseReset verifies a password reset token and returns the owner id
func (c *Codec) ParseReset(tokenString string) (uuid.UUID, error) {
	claims := &ResetClaims{}
	if err := c.parse(tokenString, c.reset.Key, claims); err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func (c *Codec) parse(tokenString string, key string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}
