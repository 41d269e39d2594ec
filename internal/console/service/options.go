package service

import (
	"context"
	"time"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
)

// UserStore — внешнее хранилище учетных записей.
// Отсутствие записи — (nil, nil); нарушение уникальности — domain.ErrUniqueViolation.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

// PasswordHasher — необратимое хеширование и проверка пароля.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

type options struct {
	auditor     audit.Auditor
	metrics     *infra.Metrics
	revocations auth.RevocationStore
	now         func() time.Time
}

type Option func(*options)

func WithAuditor(a audit.Auditor) Option {
	return func(o *options) { o.auditor = a }
}

func WithMetrics(m *infra.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRevocationStore включает ротацию refresh-токенов: каждый refresh-токен обменивается один раз.
func WithRevocationStore(r auth.RevocationStore) Option {
	return func(o *options) { o.revocations = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		auditor: audit.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = infra.NewMetrics(nil)
	}
	return o
}

// storeError оборачивает сбой хранилища во внутреннюю ошибку.
func storeError(err error) error {
	return domain.NewInternalError("user store unavailable", err)
}

// record фиксирует исход операции в метриках и журнале аудита.
func (o *options) record(ctx context.Context, action, email string, u *domain.User, err error) {
	o.metrics.Operations.WithLabelValues(action, infra.Result(err)).Inc()

	meta := audit.MetaFrom(ctx)
	ev := audit.Event{
		RequestID:  meta.RequestID,
		RemoteAddr: meta.RemoteAddr,
		Action:     action,
		Email:      email,
		Outcome:    audit.OutcomeSuccess,
		Timestamp:  o.now().UTC(),
	}
	if u != nil {
		ev.UserID = u.ID
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		ev.ActorID = p.User.ID
	}
	if err != nil {
		ev.Outcome = audit.OutcomeFailure
		ev.Error = domain.AsAuthError(err).Message
	}
	o.auditor.Log(ev)
}
