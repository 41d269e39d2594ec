package domain

import (
	"strings"
	"time"
)

// Role — закрытый набор ролей пользователя.
type Role string

const (
	RoleAuthor Role = "AUTHOR" // Роль по умолчанию при регистрации
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
)

// Authority — единственная метка прав, выводимая из роли ("ROLE_<role>").
type Authority string

const (
	AuthorityAuthor Authority = "ROLE_AUTHOR"
	AuthorityUser   Authority = "ROLE_USER"
	AuthorityAdmin  Authority = "ROLE_ADMIN"
)

// ParseRole приводит строку к верхнему регистру и проверяет принадлежность набору ролей.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", NewValidationError("Invalid role. Must be AUTHOR, USER, or ADMIN.")
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// Authority детерминированно выводит право из роли.
// Пустая строка означает, что роль вне закрытого набора.
func (r Role) Authority() Authority {
	switch r {
	case RoleAuthor:
		return AuthorityAuthor
	case RoleUser:
		return AuthorityUser
	case RoleAdmin:
		return AuthorityAdmin
	}
	return ""
}

// User — учетная запись (Principal), хранимая во внешнем хранилище.
type User struct {
	ID           string `json:"id" bson:"_id"`
	FirstName    string `json:"firstName" bson:"first_name"`
	LastName     string `json:"lastName" bson:"last_name"`
	Email        string `json:"email" bson:"email"`
	Username     string `json:"username" bson:"username"`
	PasswordHash string `json:"-" bson:"password_hash"` // Никогда не отправляем на фронт
	AvatarURL    string `json:"avatarUrl,omitempty" bson:"avatar_url"`
	Role         Role   `json:"role" bson:"role"`

	// Флаги состояния аккаунта
	AccountNonExpired     bool `json:"accountNonExpired" bson:"account_non_expired"`
	AccountNonLocked      bool `json:"accountNonLocked" bson:"account_non_locked"`
	CredentialsNonExpired bool `json:"credentialsNonExpired" bson:"credentials_non_expired"`
	Enabled               bool `json:"enabled" bson:"enabled"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Authorities возвращает снимок прав пользователя для claims.
func (u *User) Authorities() []string {
	if a := u.Role.Authority(); a != "" {
		return []string{string(a)}
	}
	return []string{}
}

// Activate выставляет флаги полностью активного аккаунта (используется при регистрации).
func (u *User) Activate() {
	u.AccountNonExpired = true
	u.AccountNonLocked = true
	u.CredentialsNonExpired = true
	u.Enabled = true
}
