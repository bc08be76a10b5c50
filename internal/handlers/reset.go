package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/handlers/render"
)

type resetService interface {
	Request(ctx context.Context, email string) error
	Check(ctx context.Context, tokenString string) error
	Consume(ctx context.Context, tokenString string, newPassword string, confirmPassword string) error
}

type ResetHandler struct {
	resetService resetService
}

func NewReset(reset resetService) *ResetHandler {
	return &ResetHandler{resetService: reset}
}

func (h *ResetHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", h.request)
	mux.HandleFunc("GET /{token}", h.check)
	mux.HandleFunc("POST /{token}", h.consume)

	return mux
}

// request always answers 200 for well-formed requests, whether or not the
// email belongs to an account
func (h *ResetHandler) request(w http.ResponseWriter, r *http.Request) {
	type ResetRequest struct {
		Email string `json:"email" validate:"required"`
	}
	type ResetSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[ResetRequest](w, r)
	if err != nil {
		return
	}

	if err := h.resetService.Request(r.Context(), data.Email); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, ResetSuccessResponse{Message: "If this email belongs to an account, a reset link was sent"})
}

func (h *ResetHandler) check(w http.ResponseWriter, r *http.Request) {
	type CheckSuccessResponse struct {
		Message string `json:"message"`
	}

	err := h.resetService.Check(r.Context(), r.PathValue("token"))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrResetTokenInvalid):
			render.ServiceError(w, "Invalid or expired reset token", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, CheckSuccessResponse{Message: "Token is valid"})
}

func (h *ResetHandler) consume(w http.ResponseWriter, r *http.Request) {
	type ConsumeRequest struct {
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}
	type ConsumeSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[ConsumeRequest](w, r)
	if err != nil {
		return
	}

	err = h.resetService.Consume(r.Context(), r.PathValue("token"), data.Password, data.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrResetTokenInvalid):
			render.ServiceError(w, "Invalid or expired reset token", http.StatusNotFound)
		case render.UserInputError(w, err):
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ConsumeSuccessResponse{Message: "Password changed successfully"})
}
