// Package reset implements the password reset flow: request a mail with a
// signed single-use token, check the token, consume it to set a new password.
package reset

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
	// Hasher to hash the new password
	// If not set bcrypt hasher is used
	Hasher auth.PasswordHasher

	// Clock override for tests
	Now func() time.Time
}

type ResetService struct {
	codec  *tokencodec.Codec
	hasher auth.PasswordHasher

	users   repository.UserRepo
	reset   repository.ResetTokenRepo
	refresh repository.RefreshTokenRepo

	mailer mailer.Mailer
	logger logger.Logger
	now    func() time.Time
}

func NewService(
	cfg Config,
	codec *tokencodec.Codec,
	users repository.UserRepo,
	resetRepo repository.ResetTokenRepo,
	refreshRepo repository.RefreshTokenRepo,
	m mailer.Mailer,
	l logger.Logger,
) (*ResetService, error) {
	if codec == nil {
		return nil, errors.New("token codec must not be nil")
	}
	if users == nil || resetRepo == nil || refreshRepo == nil {
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

	return &ResetService{
		codec:   codec,
		hasher:  hasher,
		users:   users,
		reset:   resetRepo,
		refresh: refreshRepo,
		mailer:  m,
		logger:  l,
		now:     now,
	}, nil
}

// Request mints a reset token for the account owning the email, records it
// and mails the reset link. Unknown or malformed emails succeed silently so
// the endpoint can't be used to probe which accounts exist.
//
// At most one live reset token per user: previous records are deleted before
// the insert, and the unique index on user_id stops the delete-then-insert
// race between concurrent requests.
func (s *ResetService) Request(ctx context.Context, email string) error {
	if !validate.Email(email) {
		return nil
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil
		}
		return err
	}

	tokenString, err := s.codec.MintReset(user.ID)
	if err != nil {
		return err
	}

	if _, err := s.reset.DeleteByUser(ctx, user.ID); err != nil {
		return err
	}

	rec, err := s.reset.Save(ctx, models.ResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		CreatedAt: s.now().Truncate(time.Second),
	})
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrResetTokenConflict):
		// A concurrent request won the insert race and its mail is on the
		// way, so this request is done
		s.logger.Info("reset token already issued by a concurrent request", "user_id", user.ID)
		return nil
	default:
		return fmt.Errorf("error while saving reset token. Err: %w", err)
	}

	s.logger.Info("created password reset token", "user_id", rec.UserID)

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, tokenString); err != nil {
			s.logger.Warn("failed to send password reset mail", "user_id", user.ID, "error", err.Error())
		} else {
			s.logger.Info("sent password reset mail", "user_id", user.ID)
		}
	}

	return nil
}

// Check reports whether the token is live: present in the store and
// cryptographically valid. Tokens that fail verification are deleted on
// sight. Absent and expired tokens are indistinguishable to the caller.
func (s *ResetService) Check(ctx context.Context, tokenString string) error {
	_, err := s.consume(ctx, tokenString)
	return err
}

// Consume sets a new password for the token's owner, revokes every session
// of that user and burns the token
func (s *ResetService) Consume(ctx context.Context, tokenString string, newPassword string, confirmPassword string) error {
	userID, err := s.consume(ctx, tokenString)
	if err != nil {
		return err
	}

	if fields := validate.Password(newPassword, confirmPassword); len(fields) > 0 {
		return apperrors.NewInvalidInput("Password error", fields)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("changed password via reset token", "user_id", userID)

	// Every live session requires a new login now
	if _, err := s.refresh.DeleteByUser(ctx, userID); err != nil {
		return err
	}

	return s.reset.Delete(ctx, tokenString)
}

// consume validates the token against both the store and the signature,
// deleting the record when the signature check fails
func (s *ResetService) consume(ctx context.Context, tokenString string) (uuid.UUID, error) {
	rec, err := s.reset.Get(ctx, tokenString)
	if err != nil {
		return uuid.Nil, err
	}

	userID, err := s.codec.ParseReset(rec.Token)
	if err != nil {
		if err := s.reset.Delete(ctx, tokenString); err != nil {
			return uuid.Nil, err
		}
		s.logger.Info("deleted expired reset token", "user_id", rec.UserID)
		return uuid.Nil, apperrors.ErrResetTokenInvalid
	}

	return userID, nil
}
