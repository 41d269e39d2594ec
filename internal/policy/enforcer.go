package policy

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
)

// OwnerLookup — первый шаг проверки владения: найти ресурс и вернуть id его владельца.
// Пустой id без ошибки означает, что ресурса нет.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, resourceID string) (string, error)
}

// Requirement — одно условие доступа к операции. nil означает "разрешено".
type Requirement func(r *http.Request, p *auth.Principal) error

// Authenticated пропускает любой аутентифицированный запрос.
func Authenticated() Requirement {
	return func(_ *http.Request, p *auth.Principal) error {
		if p == nil {
			return domain.NewForbiddenError("Access Denied")
		}
		return nil
	}
}

// HasRole требует точного совпадения права, выведенного из роли.
func HasRole(role domain.Role) Requirement {
	want := role.Authority()
	return func(_ *http.Request, p *auth.Principal) error {
		if !p.HasAuthority(want) {
			return domain.NewForbiddenError("Access Denied")
		}
		return nil
	}
}

// Owner сравнивает id principal с владельцем ресурса из URL-параметра param.
func Owner(lookup OwnerLookup, param string) Requirement {
	return func(r *http.Request, p *auth.Principal) error {
		if p == nil {
			return domain.NewForbiddenError("Access Denied")
		}

		// 1. Ресурс
		resourceID := chi.URLParam(r, param)
		if resourceID == "" {
			return domain.NewValidationError(param + " is required")
		}
		ownerID, err := lookup.OwnerOf(r.Context(), resourceID)
		if err != nil {
			return err
		}
		if ownerID == "" {
			return domain.NewNotFoundError("User not found")
		}

		// 2. Сравнение с principal
		if ownerID != p.User.ID {
			return domain.NewForbiddenError("Access Denied")
		}
		return nil
	}
}

// AnyOf разрешает доступ, если выполнено хотя бы одно условие.
// Возвращается ошибка последнего условия.
func AnyOf(reqs ...Requirement) Requirement {
	return func(r *http.Request, p *auth.Principal) error {
		err := error(domain.NewForbiddenError("Access Denied"))
		for _, req := range reqs {
			if err = req(r, p); err == nil {
				return nil
			}
		}
		return err
	}
}

// ErrorWriter отдает клиенту отказ в доступе.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Enforcer проверяет условия до выполнения обработчика: при отказе обработчик не вызывается.
type Enforcer struct {
	logger  *zap.Logger
	onError ErrorWriter
}

func NewEnforcer(logger *zap.Logger, onError ErrorWriter) *Enforcer {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			ae := domain.AsAuthError(err)
			http.Error(w, ae.Message, ae.Status())
		}
	}
	return &Enforcer{
		logger:  logger.Named("enforcer"),
		onError: onError,
	}
}

// Check применяет все условия к principal из контекста (логическое И).
func (e *Enforcer) Check(r *http.Request, reqs ...Requirement) error {
	p, _ := auth.PrincipalFromContext(r.Context())
	for _, req := range reqs {
		if err := req(r, p); err != nil {
			return err
		}
	}
	return nil
}

// Require — chi middleware для защищенной операции.
func (e *Enforcer) Require(reqs ...Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := e.Check(r, reqs...); err != nil {
				e.logger.Info("access denied",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				e.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
