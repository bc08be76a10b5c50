package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveRefreshToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token, created_at, last_used)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, token, created_at, last_used
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveRefreshToken, token.ID, token.UserID, token.Token, token.CreatedAt, token.LastUsed)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getRefreshToken = `-- name: GetRefreshToken
SELECT id, user_id, token, created_at, last_used
FROM refresh_tokens
WHERE token = $1
`

func (r *RefreshTokenRepo) Get(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getRefreshToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, apperrors.ErrRefreshTokenNotFound
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const listAllRefreshTokens = `-- name: ListAllRefreshTokens
SELECT id, user_id, token, created_at, last_used
FROM refresh_tokens
ORDER BY created_at
`

func (r *RefreshTokenRepo) ListAll(ctx context.Context) ([]models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, listAllRefreshTokens)
	tokens, err := pgx.CollectRows(rows, rowToRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

const touchRefreshToken = `-- name: TouchRefreshToken
UPDATE refresh_tokens
SET last_used = $2
WHERE token = $1
`

func (r *RefreshTokenRepo) Touch(ctx context.Context, tokenString string, usedAt time.Time) error {
	tag, err := r.DB.Exec(ctx, touchRefreshToken, tokenString, usedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrRefreshTokenNotFound
	}
	return nil
}

const deleteRefreshToken = `-- name: DeleteRefreshToken
DELETE FROM refresh_tokens
WHERE token = $1
`

// Delete removes the token. Deleting an absent token succeeds: a live
// refresh check and the cleanup sweep may both try to drop the same record.
func (r *RefreshTokenRepo) Delete(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, deleteRefreshToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteRefreshTokensByUser = `-- name: DeleteRefreshTokensByUser
DELETE FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteRefreshTokensByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.LastUsed)
	return t, err
}
