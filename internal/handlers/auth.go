package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/teamforge/teamforge/internal/apperrors"
	"github.com/teamforge/teamforge/internal/handlers/middleware"
	"github.com/teamforge/teamforge/internal/handlers/render"
	"github.com/teamforge/teamforge/internal/models"
)

// Header carrying the refresh token on session routes
const RefreshTokenHeader = "X-Refresh-Token"

type authService interface {
	Register(ctx context.Context, username string, password string, confirmPassword string, email string) (models.TokenPair, error)
	Login(ctx context.Context, login string, password string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshString string) (models.IssuedToken, error)
	Logout(ctx context.Context, refreshString string) error
	VerifyEmail(ctx context.Context, tokenString string) (models.TokenPair, error)
}

type AuthHandler struct {
	authService authService
}

func NewAuth(auth authService) *AuthHandler {
	return &AuthHandler{authService: auth}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("GET /token", h.refresh)
	mux.HandleFunc("DELETE /logout", h.logout)
	mux.HandleFunc("PATCH /verify/{token}", h.verify)

	return mux
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username        string `json:"username" validate:"required"`
		Email           string `json:"email" validate:"required"`
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}
	type RegisterSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Register(r.Context(), data.Username, data.Password, data.ConfirmPassword, data.Email)
	if err != nil {
		if !render.UserInputError(w, err) {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	setTokenPair(w, pair)
	render.JSONWithStatus(w, RegisterSuccessResponse{Message: "User registered successfully"}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		// Username or email address
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Login(r.Context(), data.Login, data.Password)
	if err != nil {
		if !render.UserInputError(w, err) {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	setTokenPair(w, pair)
	render.JSON(w, LoginSuccessResponse{Message: "User logged in successfully"})
}

// refresh exchanges the refresh token for a fresh access token. The refresh
// token stays the same.
func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		Message string `json:"message"`
	}

	refreshString := r.Header.Get(RefreshTokenHeader)
	if refreshString == "" {
		render.ServiceError(w, "No refresh token provided", http.StatusUnauthorized)
		return
	}

	access, err := h.authService.Refresh(r.Context(), refreshString)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set(middleware.AuthTokenHeader, access.Value)
	render.JSON(w, RefreshSuccessResponse{Message: "Token refreshed successfully"})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	refreshString := r.Header.Get(RefreshTokenHeader)
	if refreshString == "" {
		render.ServiceError(w, "No refresh token provided", http.StatusUnauthorized)
		return
	}

	err := h.authService.Logout(r.Context(), refreshString)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenExpired),
			errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, LogoutSuccessResponse{Message: "User logged out successfully"})
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) {
	type VerifySuccessResponse struct {
		Message string `json:"message"`
	}

	pair, err := h.authService.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrVerifyTokenInvalid),
			errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Invalid or expired verification link", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	setTokenPair(w, pair)
	render.JSON(w, VerifySuccessResponse{Message: "Email verified successfully"})
}

// setTokenPair puts both tokens into response headers
func setTokenPair(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(middleware.AuthTokenHeader, pair.Access.Value)
	w.Header().Set(RefreshTokenHeader, pair.Refresh.Value)
}
