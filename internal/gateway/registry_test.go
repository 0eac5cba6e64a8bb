package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstConnection(t *testing.T) {
	r := NewRegistry()

	first := r.Register("alice", "conn-1")
	assert.True(t, first)
	assert.True(t, r.IsOnline("alice"))

	_, ok := r.LastSeen("alice")
	assert.True(t, ok)
}

func TestRegisterSecondConnectionNotFirst(t *testing.T) {
	r := NewRegistry()

	require.True(t, r.Register("alice", "conn-1"))
	assert.False(t, r.Register("alice", "conn-2"))
	assert.Len(t, r.Connections("alice"), 2)
}

func TestUserStaysOnlineUntilLastConnectionGone(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "conn-1")
	r.Register("alice", "conn-2")
	r.Register("alice", "conn-3")

	userID, offline := r.Unregister("conn-2")
	assert.Equal(t, "alice", userID)
	assert.False(t, offline)
	assert.True(t, r.IsOnline("alice"))

	_, offline = r.Unregister("conn-1")
	assert.False(t, offline)

	userID, offline = r.Unregister("conn-3")
	assert.Equal(t, "alice", userID)
	assert.True(t, offline)
	assert.False(t, r.IsOnline("alice"))
}

func TestUnregisterUnknownConnection(t *testing.T) {
	r := NewRegistry()

	userID, offline := r.Unregister("nope")
	assert.Empty(t, userID)
	assert.False(t, offline)
}

func TestRemoveUserEvictsAllConnections(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "conn-1")
	r.Register("alice", "conn-2")

	conns := r.RemoveUser("alice")
	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, conns)
	assert.False(t, r.IsOnline("alice"))

	// Removed connections are unknown afterwards.
	_, offline := r.Unregister("conn-1")
	assert.False(t, offline)
}

func TestTouchUnknownUser(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Touch("ghost"))

	r.Register("alice", "conn-1")
	assert.True(t, r.Touch("alice"))
}

func TestStaleUsers(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "conn-1")
	r.Register("bob", "conn-2")

	r.SetLastSeen("alice", time.Now().Add(-10*time.Minute))

	stale := r.StaleUsers(time.Now().Add(-5 * time.Minute))
	assert.Equal(t, []string{"alice"}, stale)
}

func TestOnlineUsersSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "conn-1")
	r.Register("bob", "conn-2")
	r.Register("bob", "conn-3")

	assert.ElementsMatch(t, []string{"alice", "bob"}, r.OnlineUsers())
}
