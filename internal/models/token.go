package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one live session. The record existing is what keeps the
// session alive: deleting it logs the session out even if the signed token
// itself has not expired yet.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	LastUsed  time.Time
}

// ResetToken is a single-use password reset token. At most one live record
// per user exists at any time.
type ResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on register, login and email verification
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
