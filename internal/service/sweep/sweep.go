// Package sweep implements the periodic token cleanup. Refresh and reset
// tokens are deleted lazily when a request touches them; the sweep is the
// backstop that reclaims tokens nobody touched.
package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/logger"
	"github.com/teamforge/teamforge/internal/repository"
	"github.com/teamforge/teamforge/internal/service/auth"
	"github.com/teamforge/teamforge/internal/service/auth/tokencodec"
)

type Sweeper struct {
	evaluator *auth.Evaluator
	codec     *tokencodec.Codec

	refresh repository.RefreshTokenRepo
	reset   repository.ResetTokenRepo

	logger logger.Logger
}

func NewSweeper(
	evaluator *auth.Evaluator,
	codec *tokencodec.Codec,
	refreshRepo repository.RefreshTokenRepo,
	resetRepo repository.ResetTokenRepo,
	l logger.Logger,
) (*Sweeper, error) {
	if evaluator == nil || codec == nil {
		return nil, errors.New("evaluator and codec must not be nil")
	}
	if refreshRepo == nil || resetRepo == nil {
		return nil, errors.New("repos must not be nil")
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Sweeper{
		evaluator: evaluator,
		codec:     codec,
		refresh:   refreshRepo,
		reset:     resetRepo,
		logger:    l,
	}, nil
}

// Run walks both token stores once and deletes every record that no longer
// verifies. One bad record never stops the walk; store errors are logged
// per record and the first one is returned after the pass completes.
func (s *Sweeper) Run(ctx context.Context) error {
	started := time.Now()

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	refreshSwept, err := s.sweepRefresh(ctx)
	if err != nil {
		keep(err)
	}

	resetSwept, err := s.sweepReset(ctx)
	if err != nil {
		keep(err)
	}

	s.logger.Info("token sweep finished",
		"refresh_deleted", refreshSwept,
		"reset_deleted", resetSwept,
		"duration", time.Since(started).String(),
	)

	return firstErr
}

// sweepRefresh reuses the live-request evaluator, so the sweep and the
// request path can never disagree on what expired means
func (s *Sweeper) sweepRefresh(ctx context.Context) (int, error) {
	records, err := s.refresh.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	var firstErr error
	swept := 0

	for _, rec := range records {
		_, err := s.evaluator.Evaluate(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			swept++
		default:
			s.logger.Error("sweep failed on refresh token", "user_id", rec.UserID, "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return swept, firstErr
}

func (s *Sweeper) sweepReset(ctx context.Context) (int, error) {
	records, err := s.reset.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	var firstErr error
	swept := 0

	for _, rec := range records {
		if _, err := s.codec.ParseReset(rec.Token); err == nil {
			continue
		}

		if err := s.reset.Delete(ctx, rec.Token); err != nil {
			s.logger.Error("sweep failed on reset token", "user_id", rec.UserID, "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		swept++
	}

	return swept, firstErr
}
