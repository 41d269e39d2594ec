package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind классифицирует ошибки подсистемы аутентификации.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindDuplicateCredential ErrorKind = "duplicate_credential"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindExpiredToken        ErrorKind = "token_expired"
	KindInvalidToken        ErrorKind = "invalid_token"
	KindTokenMismatch       ErrorKind = "token_mismatch"
	KindForbidden           ErrorKind = "forbidden"
	KindInternal            ErrorKind = "internal"
)

// AuthError — ошибка с человекочитаемым сообщением и HTTP-классификацией.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is сравнивает по Kind. Несовпадение email в refresh-токене — частный случай InvalidToken.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindTokenMismatch && t.Kind == KindInvalidToken
}

// Status возвращает HTTP-статус для ответа клиенту.
func (e *AuthError) Status() int {
	switch e.Kind {
	case KindValidation, KindInvalidToken, KindTokenMismatch:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateCredential:
		return http.StatusConflict
	case KindUnauthorized, KindExpiredToken:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Recoverable — ошибка разбора токена (истек, подпись, структура).
// Фильтр запросов отвечает на такие ошибки отдельным статусом.
func (e *AuthError) Recoverable() bool {
	return e.Kind == KindExpiredToken || e.Kind == KindInvalidToken || e.Kind == KindTokenMismatch
}

func newError(kind ErrorKind, msg string, err error) *AuthError {
	return &AuthError{Kind: kind, Message: msg, Err: err}
}

func NewValidationError(msg string) *AuthError { return newError(KindValidation, msg, nil) }
func NewNotFoundError(msg string) *AuthError   { return newError(KindNotFound, msg, nil) }
func NewDuplicateCredentialError(msg string) *AuthError {
	return newError(KindDuplicateCredential, msg, nil)
}
func NewUnauthorizedError(msg string) *AuthError { return newError(KindUnauthorized, msg, nil) }
func NewForbiddenError(msg string) *AuthError    { return newError(KindForbidden, msg, nil) }
func NewTokenMismatchError(msg string) *AuthError {
	return newError(KindTokenMismatch, msg, nil)
}

func NewExpiredTokenError(msg string, err error) *AuthError {
	return newError(KindExpiredToken, msg, err)
}

func NewInvalidTokenError(msg string, err error) *AuthError {
	return newError(KindInvalidToken, msg, err)
}

func NewInternalError(msg string, err error) *AuthError {
	return newError(KindInternal, msg, err)
}

// Эталоны для errors.Is
var (
	ErrValidation          = &AuthError{Kind: KindValidation}
	ErrNotFound            = &AuthError{Kind: KindNotFound}
	ErrDuplicateCredential = &AuthError{Kind: KindDuplicateCredential}
	ErrUnauthorized        = &AuthError{Kind: KindUnauthorized}
	ErrExpiredToken        = &AuthError{Kind: KindExpiredToken}
	ErrInvalidToken        = &AuthError{Kind: KindInvalidToken}
	ErrTokenMismatch       = &AuthError{Kind: KindTokenMismatch}
	ErrForbidden           = &AuthError{Kind: KindForbidden}
)

// ErrUniqueViolation возвращается хранилищем при нарушении уникального индекса (email/username).
var ErrUniqueViolation = errors.New("unique constraint violation")

// AsAuthError извлекает AuthError из цепочки; всё остальное считается внутренней ошибкой.
func AsAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return NewInternalError("internal error", err)
}
