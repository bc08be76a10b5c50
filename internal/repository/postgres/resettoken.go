package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/models"
)

type ResetTokenRepo struct {
	DB DBTX
}

const saveResetToken = `-- name: SaveResetToken
INSERT INTO reset_tokens (id, user_id, token, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, token, created_at
`

// Save inserts the token. The unique index on user_id guarantees at most one
// live token per user, so the caller is expected to delete the previous one
// first. When a concurrent insert wins that race the unique violation is
// reported as apperrors.ErrResetTokenConflict.
func (r *ResetTokenRepo) Save(ctx context.Context, token models.ResetToken) (models.ResetToken, error) {
	rows, _ := r.DB.Query(ctx, saveResetToken, token.ID, token.UserID, token.Token, token.CreatedAt)
	saved, err := pgx.CollectOneRow(rows, rowToResetToken)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return saved, apperrors.ErrResetTokenConflict
		}
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getResetToken = `-- name: GetResetToken
SELECT id, user_id, token, created_at
FROM reset_tokens
WHERE token = $1
`

func (r *ResetTokenRepo) Get(ctx context.Context, tokenString string) (models.ResetToken, error) {
	rows, _ := r.DB.Query(ctx, getResetToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToResetToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrResetTokenInvalid
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const listAllResetTokens = `-- name: ListAllResetTokens
SELECT id, user_id, token, created_at
FROM reset_tokens
ORDER BY created_at
`

func (r *ResetTokenRepo) ListAll(ctx context.Context) ([]models.ResetToken, error) {
	rows, _ := r.DB.Query(ctx, listAllResetTokens)
	tokens, err := pgx.CollectRows(rows, rowToResetToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

const deleteResetToken = `-- name: DeleteResetToken
DELETE FROM reset_tokens
WHERE token = $1
`

// Delete removes the token, absent tokens included
func (r *ResetTokenRepo) Delete(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, deleteResetToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteResetTokensByUser = `-- name: DeleteResetTokensByUser
DELETE FROM reset_tokens
WHERE user_id = $1
`

func (r *ResetTokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteResetTokensByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToResetToken(row pgx.CollectableRow) (models.ResetToken, error) {
	var t models.ResetToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt)
	return t, err
}
