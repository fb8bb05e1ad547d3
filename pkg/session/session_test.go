package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossfield13/passctl/pkg/crypto"
)

func testKeys(t *testing.T) *crypto.KeySet {
	t.Helper()
	entry, err := crypto.RandomBytes(crypto.KeyLength)
	require.NoError(t, err)
	verify, err := crypto.RandomBytes(crypto.KeyLength)
	require.NoError(t, err)
	return &crypto.KeySet{Entry: entry, Verify: verify}
}

// managerAt returns a manager whose clock the test controls.
func managerAt(timeout time.Duration, start time.Time) (*Manager, *time.Time) {
	m := NewManager(timeout)
	current := start
	m.now = func() time.Time { return current }
	return m, &current
}

func TestStartAndResolve(t *testing.T) {
	m := NewManager(0)
	keys := testKeys(t)
	wantEntry := append([]byte(nil), keys.Entry...)

	token, err := m.Start(keys)
	require.NoError(t, err)
	assert.Len(t, token, tokenLength*2) // hex encoded

	resolved, err := m.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, wantEntry, resolved.Entry)
}

func TestResolveUnknownToken(t *testing.T) {
	m := NewManager(0)
	_, err := m.Resolve("deadbeef")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSessionExpires(t *testing.T) {
	m, clock := managerAt(5*time.Minute, time.Now())
	keys := testKeys(t)

	token, err := m.Start(keys)
	require.NoError(t, err)

	*clock = clock.Add(5*time.Minute + time.Second)
	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Nil(t, keys.Entry, "expired session must wipe its keys")

	// Once expired, the token is gone entirely.
	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestResolveExtendsIdleWindow(t *testing.T) {
	m, clock := managerAt(5*time.Minute, time.Now())
	token, err := m.Start(testKeys(t))
	require.NoError(t, err)

	// Each use inside the window restarts it.
	for i := 0; i < 3; i++ {
		*clock = clock.Add(4 * time.Minute)
		_, err = m.Resolve(token)
		require.NoError(t, err)
	}

	*clock = clock.Add(6 * time.Minute)
	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestPeekDoesNotTouch(t *testing.T) {
	m, clock := managerAt(5*time.Minute, time.Now())
	token, err := m.Start(testKeys(t))
	require.NoError(t, err)

	*clock = clock.Add(3 * time.Minute)
	assert.True(t, m.Peek(token))

	// Peek did not reset the window, so three more minutes exceed it.
	*clock = clock.Add(3 * time.Minute)
	assert.False(t, m.Peek(token))

	assert.False(t, m.Peek("no-such-token"))
}

func TestLogout(t *testing.T) {
	m := NewManager(0)
	keys := testKeys(t)

	token, err := m.Start(keys)
	require.NoError(t, err)

	require.NoError(t, m.Logout(token))
	assert.Nil(t, keys.Entry)

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	assert.ErrorIs(t, m.Logout(token), ErrNotAuthenticated)
}

func TestStartReplacesExistingSession(t *testing.T) {
	m := NewManager(0)
	oldKeys := testKeys(t)

	oldToken, err := m.Start(oldKeys)
	require.NoError(t, err)

	newToken, err := m.Start(testKeys(t))
	require.NoError(t, err)
	require.NotEqual(t, oldToken, newToken)

	_, err = m.Resolve(oldToken)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Nil(t, oldKeys.Entry, "replaced session must wipe its keys")

	_, err = m.Resolve(newToken)
	require.NoError(t, err)
}

func TestInvalidateAll(t *testing.T) {
	m := NewManager(0)
	keys := testKeys(t)

	token, err := m.Start(keys)
	require.NoError(t, err)

	m.InvalidateAll()

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Nil(t, keys.Entry)
}
