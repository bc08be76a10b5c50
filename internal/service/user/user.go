// Package user implements account settings: username, email and password
// changes plus account deletion. Mutations that touch credentials revoke
// every live session of the account.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/logger"
	"github.com/teamforge/teamforge/internal/mailer"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/repository"
	"github.com/teamforge/teamforge/internal/service/auth"
	"github.com/teamforge/teamforge/internal/service/auth/tokencodec"
	"github.com/teamforge/teamforge/internal/service/validate"
)

type Config struct {
	// Hasher to verify and hash passwords
	// If not set bcrypt hasher is used
	Hasher auth.PasswordHasher

	// Clock override for tests
	Now func() time.Time
}

type UserService struct {
	codec  *tokencodec.Codec
	hasher auth.PasswordHasher

	users   repository.UserRepo
	refresh repository.RefreshTokenRepo
	reset   repository.ResetTokenRepo

	mailer mailer.Mailer
	logger logger.Logger
	now    func() time.Time
}

func NewService(
	cfg Config,
	codec *tokencodec.Codec,
	users repository.UserRepo,
	refreshRepo repository.RefreshTokenRepo,
	resetRepo repository.ResetTokenRepo,
	m mailer.Mailer,
	l logger.Logger,
) (*UserService, error) {
	if codec == nil {
		return nil, errors.New("token codec must not be nil")
	}
	if users == nil || refreshRepo == nil || resetRepo == nil {
		return nil, errors.New("repos must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	return &UserService{
		codec:   codec,
		hasher:  hasher,
		users:   users,
		refresh: refreshRepo,
		reset:   resetRepo,
		mailer:  m,
		logger:  l,
		now:     now,
	}, nil
}

// ChangeUsername renames the account. The new name must differ, validate
// and not be taken.
func (s *UserService) ChangeUsername(ctx context.Context, userID uuid.UUID, username string) (models.User, error) {
	var user models.User

	current, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}

	if username == current.Username {
		return user, apperrors.NewInvalidInput("Username is same", map[string]string{"username": "The username is the same as the previous one"})
	}
	if fields := validate.Username(username); len(fields) > 0 {
		return user, apperrors.NewInvalidInput("Invalid username", fields)
	}

	user, err = s.users.UpdateUsername(ctx, userID, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return user, apperrors.NewInvalidInput("Taken username", map[string]string{"username": "This username is taken"})
		}
		return user, err
	}

	s.logger.Info("changed username", "user_id", userID)
	return user, nil
}

// ChangeEmail sets a new, unconfirmed email address and sends a fresh
// verification mail to it
func (s *UserService) ChangeEmail(ctx context.Context, userID uuid.UUID, email string) (models.User, error) {
	var user models.User

	current, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}

	if email == current.Email {
		return user, apperrors.NewInvalidInput("Email is same", map[string]string{"email": "The email is the same as the previous one"})
	}
	if fields := validate.EmailField(email); len(fields) > 0 {
		return user, apperrors.NewInvalidInput("Email must be a valid address", fields)
	}

	user, err = s.users.UpdateEmail(ctx, userID, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmailTaken) {
			return user, apperrors.NewInvalidInput("Taken email", map[string]string{"email": "This email is used by another account"})
		}
		return user, err
	}

	s.sendVerificationMail(ctx, user)

	return user, nil
}

// ChangePassword sets a new password after verifying the old one and logs
// out every live session of the account
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string, confirmPassword string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
		return apperrors.NewInvalidInput("Incorrect Password", map[string]string{"oldPassword": "Incorrect password"})
	}

	if fields := validate.Password(newPassword, confirmPassword); len(fields) > 0 {
		// The caller sent the new password, name the field accordingly
		if msg, ok := fields["password"]; ok {
			fields["newPassword"] = msg
			delete(fields, "password")
		}
		return apperrors.NewInvalidInput("Password error", fields)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	count, err := s.refresh.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}

	s.logger.Info("changed password", "user_id", userID, "sessions_revoked", count)
	return nil
}

// ResendVerification sends the confirmation mail again for an unconfirmed
// account. Returns apperrors.ErrEmailConfirmed when there is nothing to do.
func (s *UserService) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.EmailConfirmed {
		return apperrors.ErrEmailConfirmed
	}

	s.sendVerificationMail(ctx, user)
	return nil
}

// DeleteAccount removes the user and every token owned by it
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := s.refresh.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.reset.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("deleted user", "user_id", userID, "username", user.Username)
	return nil
}

// sendVerificationMail mints a verification token and mails it, logging
// failures instead of returning them
func (s *UserService) sendVerificationMail(ctx context.Context, user models.User) {
	if s.mailer == nil {
		return
	}

	token, err := s.codec.MintVerification(user.Email)
	if err != nil {
		s.logger.Error("error while minting verification token", "error", err.Error())
		return
	}

	if err := s.mailer.SendVerification(ctx, user.Email, user.Username, token); err != nil {
		s.logger.Warn("failed to send verification mail", "user_id", user.ID, "error", err.Error())
		return
	}

	s.logger.Info("sent verification mail", "user_id", user.ID)
}
