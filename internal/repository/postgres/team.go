package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/models"
)

type TeamRepo struct {
	DB DBTX
}

const createTeam = `-- name: CreateTeam
INSERT INTO teams (id, name, owner_id)
VALUES ($1, $2, $3)
RETURNING id, created_at, name, owner_id
`

func (r *TeamRepo) CreateTeam(ctx context.Context, name string, ownerID uuid.UUID) (models.Team, error) {
	rows, _ := r.DB.Query(ctx, createTeam, uuid.New(), name, ownerID)
	team, err := pgx.CollectOneRow(rows, rowToTeam)
	if err != nil {
		return team, fmt.Errorf("db error: %w", err)
	}
	return team, nil
}

const getTeam = `-- name: GetTeam
SELECT id, created_at, name, owner_id FROM teams
WHERE id = $1
`

func (r *TeamRepo) GetTeam(ctx context.Context, teamID uuid.UUID) (models.Team, error) {
	rows, _ := r.DB.Query(ctx, getTeam, teamID)
	team, err := pgx.CollectOneRow(rows, rowToTeam)

	switch {
	case err == nil:
		return team, nil
	case errors.Is(err, pgx.ErrNoRows):
		return team, apperrors.ErrTeamNotFound
	default:
		return team, fmt.Errorf("db error: %w", err)
	}
}

const listTeamsByMember = `-- name: ListTeamsByMember
SELECT t.id, t.created_at, t.name, t.owner_id
FROM teams t
JOIN team_members m ON m.team_id = t.id
WHERE m.user_id = $1
ORDER BY t.created_at
`

func (r *TeamRepo) ListTeamsByMember(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	rows, _ := r.DB.Query(ctx, listTeamsByMember, userID)
	teams, err := pgx.CollectRows(rows, rowToTeam)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return teams, nil
}

const renameTeam = `-- name: RenameTeam
UPDATE teams
SET name = $2
WHERE id = $1
RETURNING id, created_at, name, owner_id
`

func (r *TeamRepo) RenameTeam(ctx context.Context, teamID uuid.UUID, name string) (models.Team, error) {
	rows, _ := r.DB.Query(ctx, renameTeam, teamID, name)
	team, err := pgx.CollectOneRow(rows, rowToTeam)

	switch {
	case err == nil:
		return team, nil
	case errors.Is(err, pgx.ErrNoRows):
		return team, apperrors.ErrTeamNotFound
	default:
		return team, fmt.Errorf("db error: %w", err)
	}
}

const deleteTeam = `-- name: DeleteTeam
DELETE FROM teams
WHERE id = $1
`

func (r *TeamRepo) DeleteTeam(ctx context.Context, teamID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteTeam, teamID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTeamNotFound
	}
	return nil
}

const addMember = `-- name: AddMember
INSERT INTO team_members (team_id, user_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (r *TeamRepo) AddMember(ctx context.Context, teamID uuid.UUID, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, addMember, teamID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const removeMember = `-- name: RemoveMember
DELETE FROM team_members
WHERE team_id = $1 AND user_id = $2
`

func (r *TeamRepo) RemoveMember(ctx context.Context, teamID uuid.UUID, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, removeMember, teamID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listMembers = `-- name: ListMembers
SELECT m.team_id, m.user_id, u.username
FROM team_members m
JOIN users u ON u.id = m.user_id
WHERE m.team_id = $1
ORDER BY u.username
`

func (r *TeamRepo) ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	rows, _ := r.DB.Query(ctx, listMembers, teamID)
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TeamMember, error) {
		var m models.TeamMember
		err := row.Scan(&m.TeamID, &m.UserID, &m.Username)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return members, nil
}

func rowToTeam(row pgx.CollectableRow) (models.Team, error) {
	var t models.Team
	err := row.Scan(&t.ID, &t.CreatedAt, &t.Name, &t.OwnerID)
	return t, err
}
