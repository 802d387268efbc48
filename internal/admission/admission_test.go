package admission

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

// fakeCounter is an in-memory admission counter used to exercise the control
// logic without a store.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWithWindow(ctx context.Context, address string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[address]++
	return f.counts[address], nil
}

func TestAuthenticateWithHeader(t *testing.T) {
	control := NewControl("secret", newFakeCounter(), 100, time.Minute)

	r := httptest.NewRequest("GET", "/ws?client_id=console-1&role=admin", nil)
	r.Header.Set("Authorization", "Bearer secret")

	principal, err := control.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "console-1", principal.ID)
	assert.Equal(t, types.RoleAdmin, principal.Role)
}

func TestAuthenticateWithQueryToken(t *testing.T) {
	control := NewControl("secret", newFakeCounter(), 100, time.Minute)

	r := httptest.NewRequest("GET", "/ws?token=secret", nil)
	principal, err := control.Authenticate(r)
	require.NoError(t, err)
	assert.NotEmpty(t, principal.ID, "a principal ID is assigned when none is supplied")
	assert.Equal(t, types.RoleWorker, principal.Role)
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	control := NewControl("secret", newFakeCounter(), 100, time.Minute)

	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := control.Authenticate(r)
	assert.ErrorIs(t, err, interfaces.ErrUnauthenticated)
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	control := NewControl("secret", newFakeCounter(), 100, time.Minute)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	_, err := control.Authenticate(r)
	assert.ErrorIs(t, err, interfaces.ErrUnauthenticated)
}

func TestAuthenticateUnknownRoleBecomesWorker(t *testing.T) {
	control := NewControl("secret", newFakeCounter(), 100, time.Minute)

	r := httptest.NewRequest("GET", "/ws?token=secret&role=superuser", nil)
	principal, err := control.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, types.RoleWorker, principal.Role)
}

func TestAllowUnderLimit(t *testing.T) {
	counter := newFakeCounter()
	control := NewControl("secret", counter, 100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		assert.NoError(t, control.Allow(ctx, "10.0.0.1:51000"))
	}
}

func TestAllowRejectsOverLimit(t *testing.T) {
	counter := newFakeCounter()
	control := NewControl("secret", counter, 100, time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, control.Allow(ctx, "10.0.0.1:51000"))
	}
	assert.ErrorIs(t, control.Allow(ctx, "10.0.0.1:51000"), interfaces.ErrRateLimited)
}

func TestAllowSharesCounterAcrossPorts(t *testing.T) {
	counter := newFakeCounter()
	control := NewControl("secret", counter, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, control.Allow(ctx, "10.0.0.1:51000"))
	// Same host on a different ephemeral port shares the window.
	assert.ErrorIs(t, control.Allow(ctx, "10.0.0.1:51001"), interfaces.ErrRateLimited)
	// A different host gets its own window.
	assert.NoError(t, control.Allow(ctx, "10.0.0.2:51000"))
}

func TestAllowRefusesWhenCounterUnavailable(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("store down")
	control := NewControl("secret", counter, 100, time.Minute)

	assert.ErrorIs(t, control.Allow(context.Background(), "10.0.0.1:51000"), interfaces.ErrRateLimited)
}
