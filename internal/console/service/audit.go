package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/reflections-auth/internal/audit"
)

// AuditLogProvider описывает контракт для чтения журнала аудита.
type AuditLogProvider interface {
	FetchLogs(ctx context.Context, email string, limit int) ([]audit.Event, error)
}

type AuditService struct {
	repo AuditLogProvider
}

func NewAuditService(repo AuditLogProvider) *AuditService {
	return &AuditService{
		repo: repo,
	}
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// FetchLogs возвращает последние события по email (пустой email — все события).
func (s *AuditService) FetchLogs(ctx context.Context, email string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	logs, err := s.repo.FetchLogs(ctx, email, limit)
	if err != nil {
		return nil, storeError(fmt.Errorf("audit_service: failed to fetch logs: %w", err))
	}
	return logs, nil
}
