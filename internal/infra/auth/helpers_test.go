package auth

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reflections-auth/internal/domain"
)

// fakeClock — управляемые часы для проверки истечения токенов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testKey(n int) []byte {
	return bytes.Repeat([]byte("s"), n)
}

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(testKey(32), WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

func testUser() *domain.User {
	u := &domain.User{
		ID:        "7f1c3c2e-4a7b-4d53-9d3c-0e6c1f0f1a11",
		FirstName: "Test",
		LastName:  "Er",
		Email:     "u@test.com",
		Username:  "tester",
		Role:      domain.RoleAuthor,
	}
	u.Activate()
	return u
}
