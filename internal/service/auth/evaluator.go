package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/logger"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/repository"
	"github.com/teamforge/teamforge/internal/service/auth/tokencodec"
)

// Evaluator decides whether a stored refresh token is still alive and
// deletes it from the store when it is not. It runs inline with refresh
// requests and in bulk from the cleanup sweep; both paths converge on the
// same delete, so dropping an already deleted record is a no-op.
type Evaluator struct {
	codec   *tokencodec.Codec
	refresh repository.RefreshTokenRepo
	logger  logger.Logger
	now     func() time.Time
}

// NewEvaluator builds an evaluator. A nil now falls back to time.Now.
func NewEvaluator(codec *tokencodec.Codec, refreshRepo repository.RefreshTokenRepo, l logger.Logger, now func() time.Time) *Evaluator {
	if l == nil {
		l = logger.NewNoOp()
	}
	if now == nil {
		now = time.Now
	}

	return &Evaluator{
		codec:   codec,
		refresh: refreshRepo,
		logger:  l,
		now:     now,
	}
}

// Evaluate verifies the record's signed token and, under the sliding window
// policy, its last-used age. Invalid records are deleted and reported as
// apperrors.ErrRefreshTokenExpired; valid ones yield the owner id.
func (e *Evaluator) Evaluate(ctx context.Context, rec models.RefreshToken) (uuid.UUID, error) {
	userID, err := e.codec.ParseRefresh(rec.Token)
	if err != nil {
		return uuid.Nil, e.expire(ctx, rec)
	}

	if e.codec.RefreshSliding() {
		if e.now().Sub(rec.LastUsed) >= e.codec.RefreshTTL() {
			return uuid.Nil, e.expire(ctx, rec)
		}
	}

	return userID, nil
}

// expire drops the record and reports it expired. Store failures take
// precedence: the caller must not treat an unreachable store as a clean
// expiry.
func (e *Evaluator) expire(ctx context.Context, rec models.RefreshToken) error {
	if err := e.refresh.Delete(ctx, rec.Token); err != nil {
		return fmt.Errorf("error while deleting expired token. Err: %w", err)
	}

	e.logger.Info("deleted expired refresh token", "user_id", rec.UserID)
	return apperrors.ErrRefreshTokenExpired
}
