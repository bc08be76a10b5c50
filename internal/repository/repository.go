package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If the username is taken already has to return apperrors.ErrUserAlreadyExists,
	// if the email is used already apperrors.ErrEmailTaken
	CreateUser(ctx context.Context, username string, email string, hashedPassword string) (models.User, error)

	// Get user by id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (models.User, error)

	// Update email and drop the confirmed flag until the new address is verified
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (models.User, error)

	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// Set email_confirmed for the user owning the email
	ConfirmEmail(ctx context.Context, email string) (models.User, error)

	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// RefreshToken repository interface
//
// Deleting a token that is already gone is not an error: a live refresh check
// and the cleanup job may race to delete the same record and both must win.
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token if it exists
	// If not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// List every stored token, used by the cleanup sweep
	ListAll(ctx context.Context) ([]models.RefreshToken, error)

	// Update last_used of the token
	Touch(ctx context.Context, tokenString string, usedAt time.Time) error

	Delete(ctx context.Context, tokenString string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (count int64, err error)
}

// ResetToken repository interface
// Same delete semantics as RefreshTokenRepo
type ResetTokenRepo interface {
	// Save the token. The schema allows one token per user, so the caller
	// deletes previous tokens of the owner first. A concurrent insert for the
	// same user must surface as apperrors.ErrResetTokenConflict
	Save(ctx context.Context, token models.ResetToken) (models.ResetToken, error)

	// If not found must return apperrors.ErrResetTokenInvalid
	Get(ctx context.Context, tokenString string) (models.ResetToken, error)

	ListAll(ctx context.Context) ([]models.ResetToken, error)

	Delete(ctx context.Context, tokenString string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (count int64, err error)
}

// Team repository interface
type TeamRepo interface {
	CreateTeam(ctx context.Context, name string, ownerID uuid.UUID) (models.Team, error)

	// If team not found must return apperrors.ErrTeamNotFound
	GetTeam(ctx context.Context, teamID uuid.UUID) (models.Team, error)

	ListTeamsByMember(ctx context.Context, userID uuid.UUID) ([]models.Team, error)
	RenameTeam(ctx context.Context, teamID uuid.UUID, name string) (models.Team, error)
	DeleteTeam(ctx context.Context, teamID uuid.UUID) error

	AddMember(ctx context.Context, teamID uuid.UUID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, teamID uuid.UUID, userID uuid.UUID) error
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error)
}

// Storage aggregates all repositories over one database handle
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Reset() ResetTokenRepo
	Team() TeamRepo

	// Run fn within a database transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
