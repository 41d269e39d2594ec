package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
)

// UserService — административные операции над учетными записями.
// Проверка прав выполняется до вызова (policy), здесь только переходы состояния.
type UserService struct {
	users  UserStore
	hasher PasswordHasher
	logger *zap.Logger
	options
}

func NewUserService(users UserStore, hasher PasswordHasher, logger *zap.Logger, opts ...Option) *UserService {
	return &UserService{
		users:   users,
		hasher:  hasher,
		logger:  logger.Named("user-service"),
		options: buildOptions(opts),
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	if u == nil {
		return nil, domain.NewNotFoundError(msgUserNotFound)
	}
	return u, nil
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err)
	}
	if u == nil {
		return nil, domain.NewNotFoundError(msgUserNotFound)
	}
	return u, nil
}

func (s *UserService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return false, storeError(err)
	}
	return u == nil, nil
}

// OwnerOf — id владельца учетной записи (она сама). Пустая строка — записи нет.
func (s *UserService) OwnerOf(ctx context.Context, id string) (string, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return "", storeError(err)
	}
	if u == nil {
		return "", nil
	}
	return u.ID, nil
}

// UpdateRole: сначала поиск пользователя (NotFound), затем проверка роли (Validation).
func (s *UserService) UpdateRole(ctx context.Context, email, role string) (*domain.User, error) {
	u, err := s.mutate(ctx, email, func(u *domain.User) error {
		r, err := domain.ParseRole(role)
		if err != nil {
			return err
		}
		u.Role = r
		return nil
	})
	s.record(ctx, audit.ActionSetRole, email, u, err)
	return u, err
}

// ToggleActivation включает или выключает учетную запись.
func (s *UserService) ToggleActivation(ctx context.Context, email string, activated bool) (*domain.User, error) {
	u, err := s.mutate(ctx, email, func(u *domain.User) error {
		u.Enabled = activated
		return nil
	})
	s.record(ctx, audit.ActionActivation, email, u, err)
	return u, err
}

// LockOrUnlock блокирует (locked=true) или разблокирует учетную запись.
func (s *UserService) LockOrUnlock(ctx context.Context, email string, locked bool) (*domain.User, error) {
	u, err := s.mutate(ctx, email, func(u *domain.User) error {
		u.AccountNonLocked = !locked
		return nil
	})
	s.record(ctx, audit.ActionLock, email, u, err)
	return u, err
}

// mutate: поиск по email, изменение, сохранение. Ошибка apply прерывает операцию до записи.
func (s *UserService) mutate(ctx context.Context, email string, apply func(u *domain.User) error) (*domain.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := apply(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, storeError(err)
	}
	s.logger.Info("user updated",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)),
		zap.Bool("enabled", u.Enabled),
		zap.Bool("non_locked", u.AccountNonLocked),
	)
	return u, nil
}

// UpdateSelf меняет username и/или пароль владельца учетной записи.
func (s *UserService) UpdateSelf(ctx context.Context, id string, req domain.UpdateSelfRequest) (*domain.User, error) {
	u, err := s.updateSelf(ctx, id, req)
	email := ""
	if u != nil {
		email = u.Email
	}
	s.record(ctx, audit.ActionUpdateSelf, email, u, err)
	return u, err
}

func (s *UserService) updateSelf(ctx context.Context, id string, req domain.UpdateSelfRequest) (*domain.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" && req.Password == "" {
		return nil, domain.NewValidationError("Nothing to update")
	}

	if username != "" && username != u.Username {
		taken, err := s.users.GetUserByUsername(ctx, username)
		if err != nil {
			return nil, storeError(err)
		}
		if taken != nil {
			return nil, domain.NewDuplicateCredentialError(msgCredentialTaken)
		}
		u.Username = username
	}

	if req.Password != "" {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, domain.NewInternalError("failed to hash password", err)
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, domain.NewDuplicateCredentialError(msgCredentialTaken)
		}
		return nil, storeError(err)
	}
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	u, err := s.GetUserByID(ctx, id)
	if err == nil {
		if err = s.users.DeleteUser(ctx, id); err != nil {
			err = storeError(err)
		}
	}
	email := ""
	if u != nil {
		email = u.Email
	}
	s.record(ctx, audit.ActionDelete, email, u, err)
	return err
}
