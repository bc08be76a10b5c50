package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	Email          string
	EmailConfirmed bool
	HashedPassword string
}

// PublicUser is the user snapshot embedded in access tokens and returned by
// the API. It never carries password material.
type PublicUser struct {
	ID             uuid.UUID `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		CreatedAt:      u.CreatedAt,
		Username:       u.Username,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmed,
	}
}
