package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// PrincipalResolver — поиск учетной записи по email во внешнем хранилище.
type PrincipalResolver interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Authenticator связывает bearer-токен запроса с аутентифицированным principal.
// Используется и HTTP-фильтром, и gRPC-интерцептором.
type Authenticator struct {
	validator *Validator
	users     PrincipalResolver
	logger    *zap.Logger
	metrics   *infra.Metrics
}

func NewAuthenticator(v *Validator, users PrincipalResolver, logger *zap.Logger, metrics *infra.Metrics) *Authenticator {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Authenticator{
		validator: v,
		users:     users,
		logger:    logger.Named("authenticator"),
		metrics:   metrics,
	}
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// Authenticate возвращает контекст с principal, если токен валиден.
// Отсутствие токена или неизвестный пользователь — не ошибка: запрос остается анонимным,
// решение об отказе принимает слой авторизации. Ошибка возвращается только при сбое разбора токена.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (context.Context, error) {
	// 1. Нет токена — пропускаем запрос без аутентификации
	token, ok := BearerToken(header)
	if !ok {
		a.metrics.FilterOutcomes.WithLabelValues("anonymous").Inc()
		return ctx, nil
	}

	// 2. Email из токена; истекший или битый токен — отдельный отказ
	email, err := a.validator.ExtractEmail(token)
	if err != nil {
		a.metrics.FilterOutcomes.WithLabelValues("rejected").Inc()
		return ctx, err
	}

	// 3. Контекст уже аутентифицирован
	if _, ok := PrincipalFromContext(ctx); ok || email == "" {
		return ctx, nil
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		a.logger.Warn("principal lookup failed", zap.String("email", email), zap.Error(err))
		a.metrics.FilterOutcomes.WithLabelValues("unresolved").Inc()
		return ctx, nil
	}
	if user == nil {
		a.metrics.FilterOutcomes.WithLabelValues("unresolved").Inc()
		return ctx, nil
	}

	valid, err := a.validator.IsAccessTokenValid(token, user)
	if err != nil || !valid {
		a.logger.Debug("access token rejected for principal", zap.String("email", email), zap.Error(err))
		a.metrics.FilterOutcomes.WithLabelValues("unresolved").Inc()
		return ctx, nil
	}

	a.metrics.FilterOutcomes.WithLabelValues("authenticated").Inc()
	return WithPrincipal(ctx, NewPrincipal(user)), nil
}

// Middleware — HTTP-фильтр, выполняемый один раз на запрос.
// Ошибка токена прерывает цепочку со статусом 406, иначе запрос идет дальше в любом случае.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			ae := domain.AsAuthError(err)
			if ae.Recoverable() {
				a.logger.Warn("bearer token rejected", zap.String("kind", string(ae.Kind)), zap.Error(err))
				http.Error(w, ae.Message, http.StatusNotAcceptable)
				return
			}
			a.logger.Error("authentication failure", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
