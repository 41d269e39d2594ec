package auth

import (
	"context"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// Principal — аутентифицированная учетная запись и ее единственное право.
type Principal struct {
	User      *domain.User
	Authority domain.Authority
}

func NewPrincipal(u *domain.User) *Principal {
	return &Principal{User: u, Authority: u.Role.Authority()}
}

// HasAuthority проверяет точное совпадение права.
func (p *Principal) HasAuthority(a domain.Authority) bool {
	return p != nil && a != "" && p.Authority == a
}

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey int

const principalKey ctxKey = 1

// WithPrincipal кладет principal в контекст запроса.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext достает principal, если запрос аутентифицирован.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
