package auth

import (
	"fmt"
	"time"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// Issuer выпускает access и refresh токены. Выданные токены нигде не хранятся.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (i *Issuer) IssueAccessToken(u *domain.User) (string, error) {
	return i.codec.Encode(domain.ClaimsFor(u, domain.TokenAccess), i.accessTTL)
}

func (i *Issuer) IssueRefreshToken(u *domain.User) (string, error) {
	return i.codec.Encode(domain.ClaimsFor(u, domain.TokenRefresh), i.refreshTTL)
}

// IssuePair выпускает новую пару access + refresh.
func (i *Issuer) IssuePair(u *domain.User) (domain.TokenPair, error) {
	access, err := i.IssueAccessToken(u)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("access token: %w", err)
	}
	refresh, err := i.IssueRefreshToken(u)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("refresh token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}
