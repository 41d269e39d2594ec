package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
)

var userCols = []string{
	"id", "first_name", "last_name", "email", "username", "password_hash", "avatar_url", "role",
	"account_non_expired", "account_non_locked", "credentials_non_expired", "enabled", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(db), mock
}

func sampleUser() *domain.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &domain.User{
		ID:        "7f1c3c2e-4a7b-4d53-9d3c-0e6c1f0f1a11",
		FirstName: "Test",
		LastName:  "Er",
		Email:     "u@test.com",
		Username:  "tester",
		Role:      domain.RoleAuthor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	u.PasswordHash = "$2a$10$hash"
	u.Activate()
	return u
}

func userRow(u *domain.User) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(
		u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash, u.AvatarURL, string(u.Role),
		u.AccountNonExpired, u.AccountNonLocked, u.CredentialsNonExpired, u.Enabled, u.CreatedAt, u.UpdatedAt,
	)
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleUser()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("u@test.com").
		WillReturnRows(userRow(want))

	got, err := repo.GetUserByEmail(context.Background(), "u@test.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFoundReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	got, err := repo.GetUserByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByIDQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	id := sampleUser().ID
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetUserByID(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMalformedIDNeverReachesDatabase(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Ни одного ожидаемого запроса: любой вызов базы провалит проверку ниже
	u, err := repo.GetUserByID(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, repo.DeleteUser(context.Background(), "not-a-uuid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := sampleUser()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash, u.AvatarURL, u.Role,
			true, true, true, true, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.CreateUser(context.Background(), sampleUser())
	assert.ErrorIs(t, err, domain.ErrUniqueViolation)
}

func TestUpdateUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := sampleUser()
	u.Role = domain.RoleAdmin

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash,
			u.AvatarURL, u.Role, true, true, true, true, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateUser(context.Background(), u))

	mock.ExpectExec(`UPDATE users SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateUser(context.Background(), u)
	assert.ErrorContains(t, err, "not found")

	mock.ExpectExec(`UPDATE users SET`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	err = repo.UpdateUser(context.Background(), u)
	assert.ErrorIs(t, err, domain.ErrUniqueViolation)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAndDeleteUsers(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleUser()
	b := sampleUser()
	b.ID, b.Email, b.Username = "0b6f5d7e-2c1a-4e8b-9f3d-5a7c9e1b3d5f", "b@test.com", "bee"

	rows := userRow(a)
	rows.AddRow(b.ID, b.FirstName, b.LastName, b.Email, b.Username, b.PasswordHash, b.AvatarURL, string(b.Role),
		true, true, true, true, b.CreatedAt, b.UpdatedAt)
	mock.ExpectQuery(`SELECT .+ FROM users ORDER BY created_at`).WillReturnRows(rows)

	users, err := repo.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bee", users[1].Username)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(b.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteUser(context.Background(), b.ID))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAuditRepo(db)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{ID: "e1", Action: audit.ActionLogin, Email: "a@test.com", Outcome: audit.OutcomeSuccess, Timestamp: ts},
		{ID: "e2", Action: audit.ActionLogin, Email: "b@test.com", Outcome: audit.OutcomeFailure, Error: "bad credentials", Timestamp: ts},
	}

	mock.ExpectExec(`INSERT INTO auth_audit_logs .+ VALUES \(\$1, .+\$10\),\(\$11, .+\$20\)`).
		WithArgs(
			"e1", "", audit.ActionLogin, "a@test.com", "", "", audit.OutcomeSuccess, "", "", ts,
			"e2", "", audit.ActionLogin, "b@test.com", "", "", audit.OutcomeFailure, "bad credentials", "", ts,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.WriteBatch(context.Background(), events))
	require.NoError(t, repo.WriteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditFetchLogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAuditRepo(db)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "request_id", "action", "email", "user_id", "actor_id", "outcome", "error", "remote_addr", "timestamp"}).
		AddRow("e1", "req-1", audit.ActionLogin, "a@test.com", "u-1", "", audit.OutcomeSuccess, "", "10.0.0.1", ts)

	mock.ExpectQuery(`SELECT .+ FROM auth_audit_logs`).
		WithArgs("a@test.com", 20).
		WillReturnRows(rows)

	events, err := repo.FetchLogs(context.Background(), "a@test.com", 20)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, ts, events[0].Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}
