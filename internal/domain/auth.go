package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenType различает access и refresh токены (claim "typ").
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// TokenClaims — полезная нагрузка, подписываемая внутри токена.
// Subject — username, ID (jti) — уникальный идентификатор токена.
type TokenClaims struct {
	UserID                string    `json:"id"`
	Email                 string    `json:"email"`
	FirstName             string    `json:"firstName"`
	LastName              string    `json:"lastName"`
	Enabled               bool      `json:"enabled"`
	AccountNonLocked      bool      `json:"accountNonLocked"`
	AccountNonExpired     bool      `json:"accountNonExpired"`
	CredentialsNonExpired bool      `json:"credentialsNonExpired"`
	Authorities           []string  `json:"authorities"`
	TokenType             TokenType `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// ClaimsFor строит набор claims из учетной записи.
func ClaimsFor(u *User, typ TokenType) TokenClaims {
	return TokenClaims{
		UserID:                u.ID,
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		Enabled:               u.Enabled,
		AccountNonLocked:      u.AccountNonLocked,
		AccountNonExpired:     u.AccountNonExpired,
		CredentialsNonExpired: u.CredentialsNonExpired,
		Authorities:           u.Authorities(),
		TokenType:             typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: u.Username,
		},
	}
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult — ответ на signup/login: пара токенов и профиль.
type AuthResult struct {
	TokenPair
	Profile *User `json:"myProfile"`
}

type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required,min=6"`
	AvatarURL string `json:"avatarUrl"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest не валидируется на уровне транспорта: пустые поля — ошибка сервиса.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	Email        string `json:"email"`
}

type UpdateSelfRequest struct {
	Username string `json:"username"`
	Password string `json:"password" validate:"omitempty,min=6"`
}
