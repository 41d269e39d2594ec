package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
)

const (
	msgCredentialTaken  = "Email or username already taken"
	msgUserNotFound     = "User not found"
	msgBadCredentials   = "Bad credentials"
	msgRefreshMissing   = "Refresh token or email is missing"
	msgTokenMismatch    = "Token does not match the email provided"
	msgInvalidRefresh   = "Invalid refresh token"
	msgRefreshReused    = "Refresh token has already been used"
	msgAccountExpired   = "Your account has expired."
	msgAccountLocked    = "Your account is locked."
	msgAccountDisabled  = "Your account is disabled."
	msgCredentialsStale = "Your credentials have expired."
)

// AuthService — регистрация, вход по паролю и обмен refresh-токена.
type AuthService struct {
	users     UserStore
	hasher    PasswordHasher
	issuer    *auth.Issuer
	validator *auth.Validator
	logger    *zap.Logger
	options
}

func NewAuthService(
	users UserStore,
	hasher PasswordHasher,
	issuer *auth.Issuer,
	validator *auth.Validator,
	logger *zap.Logger,
	opts ...Option,
) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		issuer:    issuer,
		validator: validator,
		logger:    logger.Named("auth-service"),
		options:   buildOptions(opts),
	}
}

// Signup регистрирует пользователя с ролью AUTHOR и выдает пару токенов.
func (s *AuthService) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	res, err := s.signup(ctx, req)
	var u *domain.User
	if res != nil {
		u = res.Profile
	}
	s.record(ctx, audit.ActionSignup, req.Email, u, err)
	return res, err
}

func (s *AuthService) signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	if req.Email == "" || username == "" || req.Password == "" {
		return nil, domain.NewValidationError("Email, username and password are required")
	}

	// 1. Предварительные проверки уникальности. Окончательная защита — уникальный индекс хранилища
	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, storeError(err)
	}
	if existing != nil {
		return nil, domain.NewDuplicateCredentialError(msgCredentialTaken)
	}
	existing, err = s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, storeError(err)
	}
	if existing != nil {
		return nil, domain.NewDuplicateCredentialError(msgCredentialTaken)
	}

	// 2. Пароль хранится только в виде хеша
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, domain.NewInternalError("failed to hash password", err)
	}

	now := s.now().UTC()
	u := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     username,
		PasswordHash: hash,
		AvatarURL:    req.AvatarURL,
		Role:         domain.RoleAuthor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.Activate()

	// 3. Сохранение: гонка двух регистраций разрешается уникальным индексом
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return nil, domain.NewDuplicateCredentialError(msgCredentialTaken)
		}
		return nil, storeError(err)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return &domain.AuthResult{TokenPair: pair, Profile: u}, nil
}

// Login проверяет флаги аккаунта в порядке expired -> locked -> disabled, затем пароль.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	res, u, err := s.login(ctx, req)
	s.record(ctx, audit.ActionLogin, req.Email, u, err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, *domain.User, error) {
	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, storeError(err)
	}
	if u == nil {
		return nil, nil, domain.NewNotFoundError(msgUserNotFound)
	}

	// Первый нарушенный флаг прерывает проверку
	switch {
	case !u.AccountNonExpired:
		return nil, u, domain.NewUnauthorizedError(msgAccountExpired)
	case !u.AccountNonLocked:
		return nil, u, domain.NewUnauthorizedError(msgAccountLocked)
	case !u.Enabled:
		return nil, u, domain.NewUnauthorizedError(msgAccountDisabled)
	}

	if !s.hasher.Verify(u.PasswordHash, req.Password) {
		s.logger.Info("login rejected: bad credentials", zap.String("email", req.Email))
		return nil, u, domain.NewUnauthorizedError(msgBadCredentials)
	}
	if !u.CredentialsNonExpired {
		return nil, u, domain.NewUnauthorizedError(msgCredentialsStale)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, u, err
	}
	return &domain.AuthResult{TokenPair: pair, Profile: u}, u, nil
}

// Refresh обменивает refresh-токен на новую пару.
func (s *AuthService) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error) {
	pair, u, err := s.refresh(ctx, req)
	s.record(ctx, audit.ActionRefresh, req.Email, u, err)
	return pair, err
}

func (s *AuthService) refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, *domain.User, error) {
	if req.RefreshToken == "" || req.Email == "" {
		return nil, nil, domain.NewValidationError(msgRefreshMissing)
	}

	// 1. Email из токена должен совпасть с заявленным (с учетом регистра)
	claims, err := s.validator.Claims(req.RefreshToken)
	if err != nil {
		return nil, nil, err
	}
	if claims.Email != req.Email {
		s.logger.Warn("refresh rejected: email mismatch", zap.String("email", req.Email))
		return nil, nil, domain.NewTokenMismatchError(msgTokenMismatch)
	}

	// 2. Пользователь
	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, storeError(err)
	}
	if u == nil {
		return nil, nil, domain.NewNotFoundError(msgUserNotFound)
	}

	// 3. Предикат валидности refresh-токена
	valid, err := s.validator.IsRefreshTokenValid(req.RefreshToken, u)
	if err != nil {
		return nil, u, err
	}
	if !valid {
		return nil, u, domain.NewInvalidTokenError(msgInvalidRefresh, nil)
	}

	// 4. Ротация: старый токен помечается использованным до конца своей жизни
	if s.revocations != nil {
		if err := s.consume(ctx, claims); err != nil {
			return nil, u, err
		}
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, u, err
	}
	return &pair, u, nil
}

func (s *AuthService) consume(ctx context.Context, claims *domain.TokenClaims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return domain.NewInvalidTokenError(msgInvalidRefresh, nil)
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return domain.NewInvalidTokenError(msgInvalidRefresh, nil)
	}

	first, err := s.revocations.Consume(ctx, claims.ID, ttl)
	if err != nil {
		return domain.NewInternalError("revocation store unavailable", err)
	}
	if !first {
		s.logger.Warn("refresh token reuse detected",
			zap.String("jti", claims.ID),
			zap.String("email", claims.Email),
		)
		return domain.NewInvalidTokenError(msgRefreshReused, nil)
	}
	return nil
}

func (s *AuthService) issuePair(u *domain.User) (domain.TokenPair, error) {
	pair, err := s.issuer.IssuePair(u)
	if err != nil {
		return domain.TokenPair{}, domain.NewInternalError("failed to issue tokens", err)
	}
	s.metrics.TokensIssued.WithLabelValues(string(domain.TokenAccess)).Inc()
	s.metrics.TokensIssued.WithLabelValues(string(domain.TokenRefresh)).Inc()
	return pair, nil
}
