package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/handlers/render"
	"github.com/teamforge/teamforge/internal/handlers/userctx"
	"github.com/teamforge/teamforge/internal/models"
)

type teamService interface {
	Create(ctx context.Context, ownerID uuid.UUID, name string) (models.Team, error)
	Get(ctx context.Context, userID uuid.UUID, teamID uuid.UUID) (models.Team, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]models.Team, error)
	Members(ctx context.Context, userID uuid.UUID, teamID uuid.UUID) ([]models.TeamMember, error)
	Rename(ctx context.Context, userID uuid.UUID, teamID uuid.UUID, name string) (models.Team, error)
	AddMember(ctx context.Context, userID uuid.UUID, teamID uuid.UUID, username string) error
	RemoveMember(ctx context.Context, userID uuid.UUID, teamID uuid.UUID, memberID uuid.UUID) error
	Delete(ctx context.Context, userID uuid.UUID, teamID uuid.UUID) error
}

type TeamHandler struct {
	teamService teamService
}

type TeamResponse struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"ownerId"`
}

type TeamMemberResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
}

func NewTeam(team teamService) *TeamHandler {
	return &TeamHandler{teamService: team}
}

// Handler returns the team mux. Must be mounted behind the auth middleware.
func (h *TeamHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", h.create)
	mux.HandleFunc("GET /{$}", h.listMine)
	mux.HandleFunc("GET /{teamID}", h.get)
	mux.HandleFunc("PATCH /{teamID}", h.rename)
	mux.HandleFunc("DELETE /{teamID}", h.delete)
	mux.HandleFunc("GET /{teamID}/members", h.members)
	mux.HandleFunc("POST /{teamID}/members", h.addMember)
	mux.HandleFunc("DELETE /{teamID}/members/{userID}", h.removeMember)

	return mux
}

func (h *TeamHandler) create(w http.ResponseWriter, r *http.Request) {
	type CreateTeamRequest struct {
		Name string `json:"name" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[CreateTeamRequest](w, r)
	if err != nil {
		return
	}

	team, err := h.teamService.Create(r.Context(), user.ID, data.Name)
	if err != nil {
		if !render.UserInputError(w, err) {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, teamResponse(team), http.StatusCreated)
}

func (h *TeamHandler) listMine(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	teams, err := h.teamService.ListMine(r.Context(), user.ID)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	res := make([]TeamResponse, 0, len(teams))
	for _, team := range teams {
		res = append(res, teamResponse(team))
	}

	render.JSON(w, res)
}

func (h *TeamHandler) get(w http.ResponseWriter, r *http.Request) {
	user, teamID, ok := h.teamRequest(w, r)
	if !ok {
		return
	}

	team, err := h.teamService.Get(r.Context(), user.ID, teamID)
	if err != nil {
		renderTeamError(w, err)
		return
	}

	render.JSON(w, teamResponse(team))
}

func (h *TeamHandler) members(w http.ResponseWriter, r *http.Request) {
	user, teamID, ok := h.teamRequest(w, r)
	if !ok {
		return
	}

	members, err := h.teamService.Members(r.Context(), user.ID, teamID)
	if err != nil {
		renderTeamError(w, err)
		return
	}

	res := make([]TeamMemberResponse, 0, len(members))
	for _, m := range members {
		res = append(res, TeamMemberResponse{UserID: m.UserID, Username: m.Username})
	}

	render.JSON(w, res)
}

func (h *TeamHandler) rename(w http.ResponseWriter, r *http.Request) {
	type RenameTeamRequest struct {
		Name string `json:"name" validate:"required"`
	}

	user, teamID, ok := h.teamRequest(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[RenameTeamRequest](w, r)
	if err != nil {
		return
	}

	team, err := h.teamService.Rename(r.Context(), user.ID, teamID, data.Name)
	if err != nil {
		renderTeamError(w, err)
		return
	}

	render.JSON(w, teamResponse(team))
}

func (h *TeamHandler) addMember(w http.ResponseWriter, r *http.Request) {
	type AddMemberRequest struct {
		Username string `json:"username" validate:"required"`
	}
	type AddMemberSuccessResponse struct {
		Message string `json:"message"`
	}

	user, teamID, ok := h.teamRequest(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[AddMemberRequest](w, r)
	if err != nil {
		return
	}

	if err := h.teamService.AddMember(r.Context(), user.ID, teamID, data.Username); err != nil {
		renderTeamError(w, err)
		return
	}

	render.JSON(w, AddMemberSuccessResponse{Message: "Member added"})
}

func (h *TeamHandler) removeMember(w http.ResponseWriter, r *http.Request) {
	type RemoveMemberSuccessResponse struct {
		Message string `json:"message"`
	}

	user, teamID, ok := h.teamRequest(w, r)
	if !ok {
		return
	}

	memberID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		render.ServiceError(w, "Member not found", http.StatusNotFound)
		return
	}

	if err := h.teamService.RemoveMember(r.Context(), user.ID, teamID, memberID); err != nil {
		renderTeamError(w, err)
		return
	}

	render.JSON(w, RemoveMemberSuccessResponse{Message: "Member removed"})
}

func (h *TeamHandler) delete(w http.ResponseWriter, r *http.Request) {
	type DeleteTeamSuccessResponse struct {
		Message string `json:"message"`
	}

	user, teamID, ok := h.teamRequest(w, r)
	if !ok {
		return
	}

	if err := h.teamService.Delete(r.Context(), user.ID, teamID); err != nil {
		renderTeamError(w, err)
		return
	}

	render.JSON(w, DeleteTeamSuccessResponse{Message: "Team deleted"})
}

// teamRequest extracts the caller and the teamID path value, rendering the
// error itself when either is missing
func (h *TeamHandler) teamRequest(w http.ResponseWriter, r *http.Request) (models.PublicUser, uuid.UUID, bool) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return user, uuid.Nil, false
	}

	teamID, err := uuid.Parse(r.PathValue("teamID"))
	if err != nil {
		render.ServiceError(w, "Team not found", http.StatusNotFound)
		return user, uuid.Nil, false
	}

	return user, teamID, true
}

func renderTeamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTeamNotFound):
		render.ServiceError(w, "Team not found", http.StatusNotFound)
	case render.UserInputError(w, err):
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func teamResponse(team models.Team) TeamResponse {
	return TeamResponse{
		ID:        team.ID,
		CreatedAt: team.CreatedAt,
		Name:      team.Name,
		OwnerID:   team.OwnerID,
	}
}
