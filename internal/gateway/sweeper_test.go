package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictStalePublishesOfflineExactlyOnce(t *testing.T) {
	g := newTestGateway()
	tab1 := attachTestClient(g)
	tab2 := attachTestClient(g)
	observer := attachTestClient(g)
	authenticate(t, g, tab1, "carol")
	authenticate(t, g, tab2, "carol")
	authenticate(t, g, observer, "olga")
	drainEvents(t, observer)

	g.registry.SetLastSeen("carol", time.Now().Add(-10*time.Minute))

	g.evictStale(5 * time.Minute)

	assert.False(t, g.IsUserOnline("carol"))
	assert.True(t, tab1.isClosed())
	assert.True(t, tab2.isClosed())

	events := drainEvents(t, observer)
	require.Equal(t, 1, countByType(events, EventUserStatusChange))
	var status StatusChangePayload
	require.NoError(t, json.Unmarshal(findByType(t, events, EventUserStatusChange).Data, &status))
	assert.Equal(t, "carol", status.UserID)
	assert.False(t, status.IsOnline)
}

func TestEvictStaleIgnoresFreshUsers(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	authenticate(t, g, c, "alice")
	drainEvents(t, c)

	g.evictStale(5 * time.Minute)

	assert.True(t, g.IsUserOnline("alice"))
	assert.False(t, c.isClosed())
}

func TestProbeReachesRegisteredConnections(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	unauthed := attachTestClient(g)
	authenticate(t, g, c, "alice")
	drainEvents(t, c)
	drainEvents(t, unauthed)

	g.probeConnections()

	assert.Equal(t, 1, countByType(drainEvents(t, c), EventServerProbe))
	// Probes target registered connections only.
	assert.Equal(t, 0, countByType(drainEvents(t, unauthed), EventServerProbe))
}

func TestSweeperStartStopIdempotent(t *testing.T) {
	g := newTestGateway()
	g.StartSweeper()
	g.StartSweeper()
	g.StopSweeper()
	g.StopSweeper()
}

func TestEvictedUserLeavesRooms(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	authenticate(t, g, c, "carol")
	g.dispatch(c, clientEvent(t, EventJoinChat, ChatRoomPayload{PartnerID: "dave"}))
	drainEvents(t, c)

	g.registry.SetLastSeen("carol", time.Now().Add(-10*time.Minute))
	g.evictStale(5 * time.Minute)

	g.mu.RLock()
	defer g.mu.RUnlock()
	assert.Empty(t, g.rooms)
	assert.Empty(t, g.clients)
}
