package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra"
)

// UserStore — хранилище учетных записей (postgres или mongo).
// Отсутствие записи — (nil, nil), нарушение уникальности — domain.ErrUniqueViolation.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// ReliableStore оборачивает хранилище в Circuit Breaker.
// Чтения дополнительно повторяются с экспоненциальным бэкоффом; записи не повторяются,
// чтобы не создать пользователя дважды.
type ReliableStore struct {
	next     UserStore
	cb       *gobreaker.CircuitBreaker
	attempts uint
	timeout  time.Duration
	logger   *zap.Logger
}

func NewReliableStore(next UserStore, metrics *infra.Metrics, logger *zap.Logger) *ReliableStore {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	logger = logger.Named("store")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "user-store",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся
			return counts.ConsecutiveFailures > 5
		},
		// Ошибка во входных данных запроса — ответ базы, а не сбой
		IsSuccessful: func(err error) bool {
			return err == nil || isInputError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.StoreCircuitState.Set(float64(to))
		},
	})

	return &ReliableStore{
		next:     next,
		cb:       cb,
		attempts: 3,
		timeout:  3 * time.Second,
		logger:   logger,
	}
}

// read выполняет идемпотентную операцию с повторами внутри Circuit Breaker.
func (s *ReliableStore) read(ctx context.Context, op func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return s.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(s.attempts),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(func(err error) bool { return !isInputError(err) }),
		)

		var out interface{}
		err := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			var callErr error
			out, callErr = op(tCtx)
			return callErr
		})
		return out, err
	})
}

// isInputError — ошибка, вызванная данными одного запроса: нарушение уникальности
// или data exception Postgres (SQLSTATE класса 22, например неверный синтаксис UUID).
// Такие ошибки не повторяются и не открывают Circuit Breaker для остальных пользователей.
func isInputError(err error) bool {
	if errors.Is(err, domain.ErrUniqueViolation) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22")
}

func (s *ReliableStore) write(op func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, op()
	})
	return err
}

func (s *ReliableStore) readUser(ctx context.Context, op func(ctx context.Context) (*domain.User, error)) (*domain.User, error) {
	res, err := s.read(ctx, func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		return nil, err
	}
	u, _ := res.(*domain.User)
	return u, nil
}

func (s *ReliableStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.readUser(ctx, func(ctx context.Context) (*domain.User, error) {
		return s.next.GetUserByID(ctx, id)
	})
}

func (s *ReliableStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.readUser(ctx, func(ctx context.Context) (*domain.User, error) {
		return s.next.GetUserByEmail(ctx, email)
	})
}

func (s *ReliableStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.readUser(ctx, func(ctx context.Context) (*domain.User, error) {
		return s.next.GetUserByUsername(ctx, username)
	})
}

func (s *ReliableStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	res, err := s.read(ctx, func(ctx context.Context) (interface{}, error) {
		return s.next.ListUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	users, _ := res.([]domain.User)
	return users, nil
}

func (s *ReliableStore) CreateUser(ctx context.Context, u *domain.User) error {
	return s.write(func() error { return s.next.CreateUser(ctx, u) })
}

func (s *ReliableStore) UpdateUser(ctx context.Context, u *domain.User) error {
	return s.write(func() error { return s.next.UpdateUser(ctx, u) })
}

func (s *ReliableStore) DeleteUser(ctx context.Context, id string) error {
	return s.write(func() error { return s.next.DeleteUser(ctx, id) })
}

// Ping идет мимо Circuit Breaker: readiness должен видеть реальное состояние базы.
func (s *ReliableStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
