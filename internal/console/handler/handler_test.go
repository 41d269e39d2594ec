package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuth) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuth) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.TokenPair)
	return res, args.Error(1)
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) ListUsers(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	res, _ := args.Get(0).(*domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUsers) UpdateRole(ctx context.Context, email, role string) (*domain.User, error) {
	args := m.Called(ctx, email, role)
	res, _ := args.Get(0).(*domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) ToggleActivation(ctx context.Context, email string, activated bool) (*domain.User, error) {
	args := m.Called(ctx, email, activated)
	res, _ := args.Get(0).(*domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) LockOrUnlock(ctx context.Context, email string, locked bool) (*domain.User, error) {
	args := m.Called(ctx, email, locked)
	res, _ := args.Get(0).(*domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) UpdateSelf(ctx context.Context, id string, req domain.UpdateSelfRequest) (*domain.User, error) {
	args := m.Called(ctx, id, req)
	res, _ := args.Get(0).(*domain.User)
	return res, args.Error(1)
}

func (m *mockUsers) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignupHandler(t *testing.T) {
	svc := &mockAuth{}
	h := NewAuthHandler(svc, zap.NewNop())

	profile := &domain.User{ID: "1", Email: "u@test.com", Username: "tester", PasswordHash: "secret-hash", Role: domain.RoleAuthor}
	svc.On("Signup", mock.Anything, mock.MatchedBy(func(r domain.SignupRequest) bool {
		return r.Email == "u@test.com" && r.Username == "tester"
	})).Return(&domain.AuthResult{
		TokenPair: domain.TokenPair{AccessToken: "a.b.c", RefreshToken: "d.e.f"},
		Profile:   profile,
	}, nil)

	rec := post(h.Signup, `{"email":"u@test.com","username":"tester","password":"secret123"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.EqualValues(t, 201, body["status"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "a.b.c", data["accessToken"])
	assert.Equal(t, "d.e.f", data["refreshToken"])
	me := data["myProfile"].(map[string]interface{})
	assert.Equal(t, "tester", me["username"])
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	svc.AssertExpectations(t)
}

func TestSignupHandlerValidation(t *testing.T) {
	svc := &mockAuth{}
	h := NewAuthHandler(svc, zap.NewNop())

	rec := post(h.Signup, `{"email":"not-an-email","username":"","password":"123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation", resp.Error)
	assert.Contains(t, resp.Details, "Email")
	assert.Contains(t, resp.Details, "Username")
	assert.Contains(t, resp.Details, "Password")
	svc.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)

	rec = post(h.Signup, `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", domain.NewDuplicateCredentialError("Email or username already taken"), http.StatusConflict, "duplicate_credential"},
		{"unauthorized", domain.NewUnauthorizedError("Your account is locked."), http.StatusUnauthorized, "unauthorized"},
		{"not found", domain.NewNotFoundError("User not found"), http.StatusNotFound, "not_found"},
		{"expired", domain.NewExpiredTokenError("JWT expired", nil), http.StatusUnauthorized, "token_expired"},
		{"invalid", domain.NewInvalidTokenError("Invalid refresh token", nil), http.StatusBadRequest, "invalid_token"},
		{"mismatch", domain.NewTokenMismatchError("Token does not match the email provided"), http.StatusBadRequest, "token_mismatch"},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuth{}
			svc.On("Refresh", mock.Anything, mock.Anything).Return(nil, tt.err)
			h := NewAuthHandler(svc, zap.NewNop())

			rec := post(h.Refresh, `{"refreshToken":"x","email":"u@test.com"}`)

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.status, resp.Status)
			assert.False(t, resp.Timestamp.IsZero())
			assert.NotContains(t, resp.Message, "db exploded")
		})
	}
}

func TestLoginHandler(t *testing.T) {
	svc := &mockAuth{}
	svc.On("Login", mock.Anything, domain.LoginRequest{Email: "u@test.com", Password: "secret123"}).
		Return(&domain.AuthResult{TokenPair: domain.TokenPair{AccessToken: "a", RefreshToken: "r"}}, nil)
	h := NewAuthHandler(svc, zap.NewNop())

	rec := post(h.Login, `{"email":"u@test.com","password":"secret123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", decodeEnvelope(t, rec)["message"])
}

// routed вызывает обработчик через chi, чтобы заполнить URL-параметры
func routed(method, pattern, path string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestUserHandlerAdminRoutes(t *testing.T) {
	svc := &mockUsers{}
	h := NewUserHandler(svc, zap.NewNop())

	svc.On("UpdateRole", mock.Anything, "u@test.com", "SUPERUSER").
		Return(nil, domain.NewValidationError("Invalid role. Must be AUTHOR, USER, or ADMIN."))
	svc.On("UpdateRole", mock.Anything, "u@test.com", "admin").
		Return(&domain.User{Email: "u@test.com", Role: domain.RoleAdmin}, nil)
	svc.On("ToggleActivation", mock.Anything, "u@test.com", false).
		Return(&domain.User{Email: "u@test.com"}, nil)
	svc.On("LockOrUnlock", mock.Anything, "u@test.com", true).
		Return(&domain.User{Email: "u@test.com"}, nil)

	rec := routed(http.MethodPost, "/users/set-role/{email}/{role}", "/users/set-role/u@test.com/SUPERUSER", h.SetRole)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = routed(http.MethodPost, "/users/set-role/{email}/{role}", "/users/set-role/u@test.com/admin", h.SetRole)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = routed(http.MethodPost, "/users/activate/{email}/{activated}", "/users/activate/u@test.com/false", h.Activate)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = routed(http.MethodPost, "/users/activate/{email}/{activated}", "/users/activate/u@test.com/maybe", h.Activate)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = routed(http.MethodPost, "/users/lock/{email}/{locked}", "/users/lock/u@test.com/true", h.Lock)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.AssertExpectations(t)
}

func TestUserHandlerLookups(t *testing.T) {
	svc := &mockUsers{}
	h := NewUserHandler(svc, zap.NewNop())

	svc.On("GetUserByID", mock.Anything, "missing").Return(nil, domain.NewNotFoundError("User not found"))
	svc.On("IsEmailAvailable", mock.Anything, "free@test.com").Return(true, nil)
	svc.On("DeleteUser", mock.Anything, "u-1").Return(nil)

	rec := routed(http.MethodGet, "/users/id/{id}", "/users/id/missing", h.GetByID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = routed(http.MethodGet, "/users/is-email-available/{email}", "/users/is-email-available/free@test.com", h.IsEmailAvailable)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeEnvelope(t, rec)["data"])

	rec = routed(http.MethodDelete, "/users/id/{id}", "/users/id/u-1", h.Delete)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = routed(http.MethodGet, "/users/me", "/users/me", h.Me)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc.AssertExpectations(t)
}

type stubAudit struct{}

func (stubAudit) FetchLogs(_ context.Context, email string, limit int) ([]audit.Event, error) {
	return []audit.Event{{ID: "e1", Email: email, Action: audit.ActionLogin}}, nil
}

func TestAuditHandler(t *testing.T) {
	h := NewAuditHandler(stubAudit{}, zap.NewNop())

	rec := routed(http.MethodGet, "/users/audit", "/users/audit?email=u@test.com&limit=5", h.GetLogs)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"action":"login"`)

	rec = routed(http.MethodGet, "/users/audit", "/users/audit?limit=abc", h.GetLogs)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler(map[string]Pinger{
		"store": PingFunc(func(context.Context) error { return nil }),
	}, zap.NewNop())
	rec := routed(http.MethodGet, "/health/ready", "/health/ready", healthy.Ready)
	assert.Equal(t, http.StatusOK, rec.Code)

	broken := NewHealthHandler(map[string]Pinger{
		"store": PingFunc(func(context.Context) error { return errors.New("down") }),
	}, zap.NewNop())
	rec = routed(http.MethodGet, "/health/ready", "/health/ready", broken.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")

	rec = routed(http.MethodGet, "/actuator/version", "/actuator/version", healthy.Version)
	assert.Equal(t, "Refection V-1.0.0", rec.Body.String())
}
