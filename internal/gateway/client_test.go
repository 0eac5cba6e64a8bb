package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAfterCloseReturnsDisconnected(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)

	frame, err := encodeEvent(EventServerPong, PongPayload{ServerTime: 1})
	require.NoError(t, err)

	require.NoError(t, c.enqueue(frame))
	c.close()
	assert.ErrorIs(t, c.enqueue(frame), ErrClientDisconnected)

	// close is idempotent.
	c.close()
	c.forceClose()
	assert.ErrorIs(t, c.enqueue(frame), ErrClientDisconnected)
}

// Emitters race teardown all the time: a message fan-out, a presence
// broadcast or a sweeper probe can target a client that another goroutine is
// detaching at that exact moment. Whatever the interleaving, the emitter must
// get ErrClientDisconnected back, never a panic.
func TestEnqueueConcurrentWithTeardown(t *testing.T) {
	g := newTestGateway()
	c := attachTestClient(g)
	authenticate(t, g, c, "alice")
	drainEvents(t, c)

	frame, err := encodeEvent(EventNewMessage, MessageEventPayload{RoomID: "chat:alice-bob"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 1000; j++ {
				c.enqueue(frame)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		g.detach(c)
	}()

	close(start)
	wg.Wait()

	assert.ErrorIs(t, c.enqueue(frame), ErrClientDisconnected)
	assert.False(t, g.IsUserOnline("alice"))
}

func TestSweeperEvictionConcurrentWithFanOut(t *testing.T) {
	g := newTestGateway()
	tab1 := attachTestClient(g)
	tab2 := attachTestClient(g)
	authenticate(t, g, tab1, "alice")
	authenticate(t, g, tab2, "alice")

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < 500; i++ {
			g.emitToUser("alice", EventServerProbe, PongPayload{ServerTime: int64(i)})
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		g.evictStale(0)
	}()

	close(start)
	wg.Wait()

	assert.False(t, g.IsUserOnline("alice"))
}
