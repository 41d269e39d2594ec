package handler

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
)

type AuditReader interface {
	FetchLogs(ctx context.Context, email string, limit int) ([]audit.Event, error)
}

type AuditHandler struct {
	service AuditReader
	logger  *zap.Logger
}

func NewAuditHandler(s AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{service: s, logger: logger.Named("audit-handler")}
}

// GetLogs возвращает события аудита с фильтрацией
// GET /users/audit?email=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			HandleServiceError(w, domain.NewValidationError("limit must be a number"), h.logger)
			return
		}
		limit = n
	}

	logs, err := h.service.FetchLogs(r.Context(), email, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	respond(w, h.logger, http.StatusOK, "Audit logs fetched successfully", logs)
}
