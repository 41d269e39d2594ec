package auth

import (
	"errors"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// Validator проверяет подпись, срок действия и соответствие claims учетной записи.
// Каждый метод сначала декодирует токен, поэтому ошибки — из таксономии Codec.
type Validator struct {
	codec *Codec
}

func NewValidator(codec *Codec) *Validator {
	return &Validator{codec: codec}
}

// Claims возвращает все claims токена.
func (v *Validator) Claims(token string) (*domain.TokenClaims, error) {
	return v.codec.Decode(token)
}

// ExtractClaim декодирует токен и проецирует claims через resolve.
func ExtractClaim[T any](v *Validator, token string, resolve func(*domain.TokenClaims) T) (T, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		var zero T
		return zero, err
	}
	return resolve(claims), nil
}

func (v *Validator) ExtractEmail(token string) (string, error) {
	return ExtractClaim(v, token, func(c *domain.TokenClaims) string { return c.Email })
}

// ExtractSubject возвращает subject (username).
func (v *Validator) ExtractSubject(token string) (string, error) {
	return ExtractClaim(v, token, func(c *domain.TokenClaims) string { return c.Subject })
}

func (v *Validator) ExtractUserID(token string) (string, error) {
	return ExtractClaim(v, token, func(c *domain.TokenClaims) string { return c.UserID })
}

// ExtractClaimByKey возвращает значение claim по имени ключа, как оно лежит в токене.
func (v *Validator) ExtractClaimByKey(token, key string) (interface{}, error) {
	claims, err := v.codec.DecodeMap(token)
	if err != nil {
		return nil, err
	}
	return claims[key], nil
}

// IsExpired возвращает true для истекшего токена; прочие ошибки декодирования пробрасываются.
func (v *Validator) IsExpired(token string) (bool, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		if errors.Is(err, domain.ErrExpiredToken) {
			return true, nil
		}
		return false, err
	}
	return v.expired(claims), nil
}

// IsAccessTokenValid: email в токене совпадает с email пользователя (с учетом регистра)
// и токен не истек. Refresh-токен access-проверку не проходит.
func (v *Validator) IsAccessTokenValid(token string, u *domain.User) (bool, error) {
	return v.valid(token, u, domain.TokenAccess)
}

// IsRefreshTokenValid — тот же предикат для refresh-токенов.
func (v *Validator) IsRefreshTokenValid(token string, u *domain.User) (bool, error) {
	return v.valid(token, u, domain.TokenRefresh)
}

func (v *Validator) valid(token string, u *domain.User, want domain.TokenType) (bool, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	// Токены без typ принимаются обеими проверками
	if claims.TokenType != "" && claims.TokenType != want {
		return false, nil
	}
	return claims.Email == u.Email && !v.expired(claims), nil
}

func (v *Validator) expired(claims *domain.TokenClaims) bool {
	if claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.After(v.codec.now())
}
