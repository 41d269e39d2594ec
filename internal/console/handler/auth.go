package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// AuthUseCase — операции аутентификации, которые вызывает транспорт.
type AuthUseCase interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)
	Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error)
}

type AuthHandler struct {
	service AuthUseCase
	logger  *zap.Logger
}

func NewAuthHandler(s AuthUseCase, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, logger: logger.Named("auth-handler")}
}

// Signup POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleDecodeError(w, err, h.logger)
		return
	}

	res, err := h.service.Signup(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusCreated, "User registered successfully", res)
}

// Login POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleDecodeError(w, err, h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Login successful", res)
}

// Refresh POST /auth/refresh-token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleDecodeError(w, err, h.logger)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Token refreshed successfully", pair)
}
