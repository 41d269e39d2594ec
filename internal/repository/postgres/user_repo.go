package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// Код ошибки Postgres: unique_violation
const uniqueViolation = "23505"

const userColumns = `id, first_name, last_name, email, username, password_hash, avatar_url, role,
	account_non_expired, account_non_locked, credentials_non_expired, enabled, created_at, updated_at`

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Username, &u.PasswordHash, &u.AvatarURL, &u.Role,
		&u.AccountNonExpired, &u.AccountNonLocked, &u.CredentialsNonExpired, &u.Enabled,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	return u, nil
}

// GetUserByID: id не в формате UUID не может существовать в колонке UUID, запрос не выполняется.
func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, "id = $1", id)
}

// GetUserByEmail — точное сравнение, email чувствителен к регистру.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *UserRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash, u.AvatarURL, u.Role,
		u.AccountNonExpired, u.AccountNonLocked, u.CredentialsNonExpired, u.Enabled,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("create user", err)
	}
	return nil
}

func (r *UserRepo) UpdateUser(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users SET
			first_name = $2, last_name = $3, email = $4, username = $5, password_hash = $6,
			avatar_url = $7, role = $8, account_non_expired = $9, account_non_locked = $10,
			credentials_non_expired = $11, enabled = $12, updated_at = $13
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash,
		u.AvatarURL, u.Role, u.AccountNonExpired, u.AccountNonLocked,
		u.CredentialsNonExpired, u.Enabled, u.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("update user", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("postgres: user %s not found", u.ID)
	}
	return nil
}

func (r *UserRepo) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil // Удалять нечего
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete user: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы
func (r *UserRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// mapWriteError переводит нарушение уникального индекса в доменную ошибку.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("postgres: %s: %s: %w", op, pgErr.ConstraintName, domain.ErrUniqueViolation)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
