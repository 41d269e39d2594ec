package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/reflections-auth/internal/domain"
)

// minKeyBytes — ключ HMAC короче 256 бит считается слабым.
const minKeyBytes = 32

// Codec кодирует claims в компактную подписанную строку (header.claims.signature) и обратно.
// Подпись симметричная (HMAC) общим секретом процесса.
// MinExpiry — минимальный срок жизни токена.
const MinExpiry = time.Second

type Codec struct {
	key    []byte
	method jwt.SigningMethod
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock подменяет источник времени (для тестов истечения).
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec выбирает алгоритм по длине ключа: >=64 байт HS512, >=48 HS384, иначе HS256.
func NewCodec(key []byte, opts ...CodecOption) (*Codec, error) {
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", minKeyBytes, len(key))
	}

	var method jwt.SigningMethod
	switch {
	case len(key) >= 64:
		method = jwt.SigningMethodHS512
	case len(key) >= 48:
		method = jwt.SigningMethodHS384
	default:
		method = jwt.SigningMethodHS256
	}

	c := &Codec{key: key, method: method, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Algorithm возвращает имя алгоритма подписи (alg).
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Encode проставляет issued-at = now, expiration = now + expiry, jti и подписывает claims.
func (c *Codec) Encode(claims domain.TokenClaims, expiry time.Duration) (string, error) {
	// exp и iat хранятся в целых секундах: меньший срок дал бы exp == iat
	if expiry < MinExpiry {
		return "", fmt.Errorf("token expiry must be at least %s, got %s", MinExpiry, expiry)
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(c.method, &claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode проверяет подпись, структуру и срок действия.
// Истекший токен — ExpiredTokenError, всё остальное — InvalidTokenError.
func (c *Codec) Decode(tokenStr string) (*domain.TokenClaims, error) {
	claims := &domain.TokenClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// DecodeMap разбирает токен в произвольную карту claims.
func (c *Codec) DecodeMap(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if err := c.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.NewExpiredTokenError("JWT expired", err)
		}
		return domain.NewInvalidTokenError("Invalid JWT: "+err.Error(), err)
	}
	if !token.Valid {
		return domain.NewInvalidTokenError("Invalid JWT", nil)
	}
	return nil
}
