package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra/auth"
)

// memStore — хранилище в памяти с уникальностью email и username
type memStore struct {
	mu     sync.Mutex
	byID   map[string]domain.User
	writes int
	err    error
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]domain.User)}
}

func (m *memStore) find(match func(u domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *memStore) ListUsers(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, m.err
}

func (m *memStore) conflicts(u *domain.User) bool {
	for id, other := range m.byID {
		if id != u.ID && (other.Email == u.Email || other.Username == u.Username) {
			return true
		}
	}
	return false
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.conflicts(u) {
		return domain.ErrUniqueViolation
	}
	m.writes++
	m.byID[u.ID] = *u
	return nil
}

func (m *memStore) UpdateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts(u) {
		return domain.ErrUniqueViolation
	}
	m.writes++
	m.byID[u.ID] = *u
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	delete(m.byID, id)
	return nil
}

func (m *memStore) put(u domain.User) {
	m.mu.Lock()
	m.byID[u.ID] = u
	m.mu.Unlock()
}

func (m *memStore) snapshot() map[string]domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]domain.User, len(m.byID))
	for k, v := range m.byID {
		cp[k] = v
	}
	return cp
}

// plainHasher — предсказуемый "хеш" для тестов
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (plainHasher) Verify(hash, pw string) bool    { return hash == "hashed:"+pw }

// recordingAuditor запоминает события
type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Log(e audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingAuditor) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store     *memStore
	clock     *clock
	auditor   *recordingAuditor
	validator *auth.Validator
	issuer    *auth.Issuer
	svc       *AuthService
	users     *UserService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := auth.NewCodec(bytes.Repeat([]byte("k"), 32), auth.WithClock(c.Now))
	require.NoError(t, err)

	f := &fixture{
		store:     newMemStore(),
		clock:     c,
		auditor:   &recordingAuditor{},
		validator: auth.NewValidator(codec),
		issuer:    auth.NewIssuer(codec, 15*time.Minute, 24*time.Hour),
	}
	opts = append([]Option{WithAuditor(f.auditor), WithClock(c.Now)}, opts...)
	f.svc = NewAuthService(f.store, plainHasher{}, f.issuer, f.validator, zap.NewNop(), opts...)
	f.users = NewUserService(f.store, plainHasher{}, zap.NewNop(), opts...)
	return f
}

func signupRequest() domain.SignupRequest {
	return domain.SignupRequest{
		FirstName: "Test",
		LastName:  "Er",
		Email:     "u@test.com",
		Username:  "tester",
		Password:  "secret123",
	}
}

// registered регистрирует пользователя и возвращает результат
func (f *fixture) registered(t *testing.T) *domain.AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)
	return res
}

func zapNop() *zap.Logger { return zap.NewNop() }
