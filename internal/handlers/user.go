package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/handlers/render"
	"github.com/teamforge/teamforge/internal/handlers/userctx"
	"github.com/teamforge/teamforge/internal/models"
)

type userService interface {
	ChangeUsername(ctx context.Context, userID uuid.UUID, username string) (models.User, error)
	ChangeEmail(ctx context.Context, userID uuid.UUID, email string) (models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string, confirmPassword string) error
	ResendVerification(ctx context.Context, userID uuid.UUID) error
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

type UserHandler struct {
	userService userService
}

func NewUser(user userService) *UserHandler {
	return &UserHandler{userService: user}
}

// Handler returns the account settings mux. Must be mounted behind the auth
// middleware.
func (h *UserHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.me)
	mux.HandleFunc("DELETE /{$}", h.deleteAccount)
	mux.HandleFunc("PATCH /username", h.changeUsername)
	mux.HandleFunc("PATCH /email", h.changeEmail)
	mux.HandleFunc("GET /email", h.resendVerification)
	mux.HandleFunc("PATCH /password", h.changePassword)

	return mux
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, user)
}

func (h *UserHandler) changeUsername(w http.ResponseWriter, r *http.Request) {
	type ChangeUsernameRequest struct {
		Username string `json:"username" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[ChangeUsernameRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.ChangeUsername(r.Context(), user.ID, data.Username)
	if err != nil {
		if !render.UserInputError(w, err) {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, updated.Public())
}

func (h *UserHandler) changeEmail(w http.ResponseWriter, r *http.Request) {
	type ChangeEmailRequest struct {
		Email string `json:"email" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[ChangeEmailRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.ChangeEmail(r.Context(), user.ID, data.Email)
	if err != nil {
		if !render.UserInputError(w, err) {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, updated.Public())
}

func (h *UserHandler) resendVerification(w http.ResponseWriter, r *http.Request) {
	type ResendSuccessResponse struct {
		Message string `json:"message"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	err := h.userService.ResendVerification(r.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEmailConfirmed):
			render.ServiceError(w, "Email is already confirmed", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ResendSuccessResponse{Message: "Verification mail sent"})
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	type ChangePasswordRequest struct {
		OldPassword     string `json:"oldPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}
	type ChangePasswordSuccessResponse struct {
		Message string `json:"message"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[ChangePasswordRequest](w, r)
	if err != nil {
		return
	}

	err = h.userService.ChangePassword(r.Context(), user.ID, data.OldPassword, data.NewPassword, data.ConfirmPassword)
	if err != nil {
		if !render.UserInputError(w, err) {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ChangePasswordSuccessResponse{Message: "Password changed successfully"})
}

func (h *UserHandler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	type DeleteSuccessResponse struct {
		Message string `json:"message"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), user.ID); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, DeleteSuccessResponse{Message: "Account deleted"})
}
