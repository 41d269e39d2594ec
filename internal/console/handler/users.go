package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
)

// UserUseCase — операции над учетными записями.
type UserUseCase interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
	UpdateRole(ctx context.Context, email, role string) (*domain.User, error)
	ToggleActivation(ctx context.Context, email string, activated bool) (*domain.User, error)
	LockOrUnlock(ctx context.Context, email string, locked bool) (*domain.User, error)
	UpdateSelf(ctx context.Context, id string, req domain.UpdateSelfRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type UserHandler struct {
	service UserUseCase
	logger  *zap.Logger
}

func NewUserHandler(s UserUseCase, logger *zap.Logger) *UserHandler {
	return &UserHandler{service: s, logger: logger.Named("user-handler")}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Users fetched successfully", users)
}

// Me возвращает профиль аутентифицированного пользователя
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		HandleServiceError(w, domain.NewForbiddenError("Access Denied"), h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Profile fetched successfully", p.User)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "User fetched successfully", u)
}

func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUserByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "User fetched successfully", u)
}

func (h *UserHandler) IsEmailAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := h.service.IsEmailAvailable(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Email availability checked", available)
}

// SetRole POST /users/set-role/{email}/{role}
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "email"), chi.URLParam(r, "role"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Role updated successfully", u)
}

// Activate POST /users/activate/{email}/{activated}
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	activated, err := strconv.ParseBool(chi.URLParam(r, "activated"))
	if err != nil {
		HandleServiceError(w, domain.NewValidationError("activated must be true or false"), h.logger)
		return
	}
	u, err := h.service.ToggleActivation(r.Context(), chi.URLParam(r, "email"), activated)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "User activation updated", u)
}

// Lock POST /users/lock/{email}/{locked}
func (h *UserHandler) Lock(w http.ResponseWriter, r *http.Request) {
	locked, err := strconv.ParseBool(chi.URLParam(r, "locked"))
	if err != nil {
		HandleServiceError(w, domain.NewValidationError("locked must be true or false"), h.logger)
		return
	}
	u, err := h.service.LockOrUnlock(r.Context(), chi.URLParam(r, "email"), locked)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "User lock status updated", u)
}

// UpdateSelf POST /users/id/{id}/update
func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSelfRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleDecodeError(w, err, h.logger)
		return
	}
	u, err := h.service.UpdateSelf(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "User updated successfully", u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "User deleted successfully", nil)
}
