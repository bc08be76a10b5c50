// Package team implements team management on top of the team repository.
// Only the owner may rename a team, manage its members or delete it.
package team

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/logger"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/repository"
)

type TeamService struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) (*TeamService, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOp()
	}

	return &TeamService{storage: storage, logger: l}, nil
}

// Create makes a team owned by the caller. The owner joins as the first
// member in the same transaction.
func (s *TeamService) Create(ctx context.Context, ownerID uuid.UUID, name string) (models.Team, error) {
	var team models.Team

	if fields := validateName(name); len(fields) > 0 {
		return team, apperrors.NewInvalidInput("Invalid team name", fields)
	}

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		team, err = tx.Team().CreateTeam(ctx, strings.TrimSpace(name), ownerID)
		if err != nil {
			return err
		}
		return tx.Team().AddMember(ctx, team.ID, ownerID)
	})
	if err != nil {
		return team, err
	}

	s.logger.Info("created team", "team_id", team.ID, "owner_id", ownerID)
	return team, nil
}

// Get returns the team if the caller is a member of it
func (s *TeamService) Get(ctx context.Context, userID uuid.UUID, teamID uuid.UUID) (models.Team, error) {
	team, err := s.storage.Team().GetTeam(ctx, teamID)
	if err != nil {
		return models.Team{}, err
	}

	member, err := s.isMember(ctx, teamID, userID)
	if err != nil {
		return models.Team{}, err
	}
	if !member {
		// Hide teams the caller has no business seeing
		return models.Team{}, apperrors.ErrTeamNotFound
	}

	return team, nil
}

// ListMine returns every team the caller is a member of
func (s *TeamService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Team, error) {
	return s.storage.Team().ListTeamsByMember(ctx, userID)
}

// Members lists the team's members, visible to members only
func (s *TeamService) Members(ctx context.Context, userID uuid.UUID, teamID uuid.UUID) ([]models.TeamMember, error) {
	if _, err := s.Get(ctx, userID, teamID); err != nil {
		return nil, err
	}

	return s.storage.Team().ListMembers(ctx, teamID)
}

// Rename changes the team's name, owner only
func (s *TeamService) Rename(ctx context.Context, userID uuid.UUID, teamID uuid.UUID, name string) (models.Team, error) {
	var team models.Team

	if fields := validateName(name); len(fields) > 0 {
		return team, apperrors.NewInvalidInput("Invalid team name", fields)
	}

	if err := s.requireOwner(ctx, teamID, userID); err != nil {
		return team, err
	}

	team, err := s.storage.Team().RenameTeam(ctx, teamID, strings.TrimSpace(name))
	if err != nil {
		return team, err
	}

	s.logger.Info("renamed team", "team_id", teamID)
	return team, nil
}

// AddMember adds the user named by username to the team, owner only
func (s *TeamService) AddMember(ctx context.Context, userID uuid.UUID, teamID uuid.UUID, username string) error {
	if err := s.requireOwner(ctx, teamID, userID); err != nil {
		return err
	}

	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return apperrors.NewInvalidInput("Unknown user", map[string]string{"username": "No user with this username"})
		}
		return err
	}

	if err := s.storage.Team().AddMember(ctx, teamID, user.ID); err != nil {
		return err
	}

	s.logger.Info("added team member", "team_id", teamID, "user_id", user.ID)
	return nil
}

// RemoveMember removes a member. The owner may remove anyone but itself;
// a regular member may only leave.
func (s *TeamService) RemoveMember(ctx context.Context, userID uuid.UUID, teamID uuid.UUID, memberID uuid.UUID) error {
	team, err := s.storage.Team().GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	switch {
	case memberID == team.OwnerID:
		return apperrors.NewInvalidInput("Owner can't leave", map[string]string{"member": "The owner can't be removed, delete the team instead"})
	case userID != team.OwnerID && userID != memberID:
		return apperrors.ErrTeamNotFound
	}

	if err := s.storage.Team().RemoveMember(ctx, teamID, memberID); err != nil {
		return err
	}

	s.logger.Info("removed team member", "team_id", teamID, "user_id", memberID)
	return nil
}

// Delete removes the team and its memberships, owner only
func (s *TeamService) Delete(ctx context.Context, userID uuid.UUID, teamID uuid.UUID) error {
	if err := s.requireOwner(ctx, teamID, userID); err != nil {
		return err
	}

	if err := s.storage.Team().DeleteTeam(ctx, teamID); err != nil {
		return err
	}

	s.logger.Info("deleted team", "team_id", teamID)
	return nil
}

func (s *TeamService) requireOwner(ctx context.Context, teamID uuid.UUID, userID uuid.UUID) error {
	team, err := s.storage.Team().GetTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if team.OwnerID != userID {
		// Same answer for "not yours" and "does not exist"
		return apperrors.ErrTeamNotFound
	}

	return nil
}

func (s *TeamService) isMember(ctx context.Context, teamID uuid.UUID, userID uuid.UUID) (bool, error) {
	members, err := s.storage.Team().ListMembers(ctx, teamID)
	if err != nil {
		return false, err
	}

	for _, m := range members {
		if m.UserID == userID {
			return true, nil
		}
	}

	return false, nil
}

func validateName(name string) map[string]string {
	errs := map[string]string{}

	if len(strings.TrimSpace(name)) < 3 {
		errs["name"] = "Team name needs to be at least 3 characters long"
	}

	return errs
}
