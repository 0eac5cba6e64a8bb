package gateway

import (
	"time"
)

// SweeperConfig holds the liveness thresholds. Probe and evict run as two
// phases of one scheduled task so the timers cannot drift apart.
type SweeperConfig struct {
	// ProbeInterval is how often every registered connection gets a
	// server_probe, encouraging transports to reveal silently-dead sockets.
	ProbeInterval time.Duration

	// EvictInterval is how often the stale scan runs.
	EvictInterval time.Duration

	// StaleThreshold is how long a user may stay silent before all of their
	// connections are force-closed.
	StaleThreshold time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		ProbeInterval:  2 * time.Minute,
		EvictInterval:  5 * time.Minute,
		StaleThreshold: 5 * time.Minute,
	}
}

// StartSweeper launches the background liveness task. Idempotent.
func (g *Gateway) StartSweeper() {
	g.sweepMu.Lock()
	defer g.sweepMu.Unlock()
	if g.sweepRunning {
		return
	}
	g.sweepRunning = true
	g.sweepStop = make(chan struct{})

	cfg := g.cfg.Sweeper
	g.logger.Info("liveness sweeper started",
		"probeInterval", cfg.ProbeInterval,
		"evictInterval", cfg.EvictInterval,
		"staleThreshold", cfg.StaleThreshold)

	go g.sweepLoop(cfg, g.sweepStop)
}

// StopSweeper stops the background task. Idempotent.
func (g *Gateway) StopSweeper() {
	g.sweepMu.Lock()
	defer g.sweepMu.Unlock()
	if !g.sweepRunning {
		return
	}
	close(g.sweepStop)
	g.sweepRunning = false
}

func (g *Gateway) sweepLoop(cfg SweeperConfig, stop <-chan struct{}) {
	ticker := time.NewTicker(cfg.ProbeInterval)
	defer ticker.Stop()

	lastEvict := time.Now()
	for {
		select {
		case <-ticker.C:
			g.probeConnections()
			if time.Since(lastEvict) >= cfg.EvictInterval {
				g.evictStale(cfg.StaleThreshold)
				lastEvict = time.Now()
			}
		case <-stop:
			g.logger.Info("liveness sweeper stopped")
			return
		}
	}
}

// probeConnections sends a lightweight signal to every registered
// connection. Writes that fail take the ordinary disconnect path.
func (g *Gateway) probeConnections() {
	payload := PongPayload{ServerTime: time.Now().UnixMilli()}
	for _, userID := range g.registry.OnlineUsers() {
		if err := g.emitToUser(userID, EventServerProbe, payload); err != nil {
			g.logger.Debug("probe failed", "userID", userID, "error", err)
		}
	}
}

// evictStale removes every user silent past the threshold. All of the
// user's connections are force-closed in one pass so exactly one offline
// transition is published, however many tabs they had open.
func (g *Gateway) evictStale(threshold time.Duration) {
	cutoff := time.Now().Add(-threshold)
	for _, userID := range g.registry.StaleUsers(cutoff) {
		conns := g.registry.RemoveUser(userID)
		if len(conns) == 0 {
			continue
		}

		for _, connID := range conns {
			g.mu.Lock()
			c, ok := g.clients[connID]
			if ok {
				delete(g.clients, connID)
				for _, roomID := range c.roomList() {
					g.removeFromRoomLocked(c, roomID)
				}
			}
			g.mu.Unlock()
			if ok {
				c.forceClose()
			}
		}

		g.publishStatus(userID, false)
		g.logger.Info("evicted stale user", "userID", userID, "connections", len(conns))
	}
}
