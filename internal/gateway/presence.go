package gateway

import (
	"context"
	"time"
)

const mirrorTimeout = 3 * time.Second

// publishStatus broadcasts an online/offline transition and shadows it into
// the presence mirror. With the global scope every connected client observes
// every transition; contact scoping is a reserved policy, not a bug fix.
func (g *Gateway) publishStatus(userID string, online bool) {
	payload := StatusChangePayload{UserID: userID, IsOnline: online}
	if seen, ok := g.registry.LastSeen(userID); ok {
		payload.LastActive = seen.UnixMilli()
	} else if !online {
		payload.LastActive = time.Now().UnixMilli()
	}

	switch g.cfg.PresenceScope {
	case PresenceScopeContacts:
		// Reserved: would resolve the user's contact graph here. Until then
		// contacts scope behaves like global.
		g.broadcast(EventUserStatusChange, payload)
	default:
		g.broadcast(EventUserStatusChange, payload)
	}

	if online {
		g.mirrorOnline(userID)
	} else {
		g.mirrorOffline(userID)
	}
}

// sendOnlineSnapshot gives a newly authenticated client the full set of
// online users so it does not have to wait for transitions.
func (g *Gateway) sendOnlineSnapshot(c *Client) {
	if err := c.sendEvent(EventOnlineUsersList, OnlineUsersPayload{UserIDs: g.registry.OnlineUsers()}); err != nil {
		g.logger.Debug("failed to send online snapshot", "clientID", c.id, "error", err)
	}
}

func (g *Gateway) mirrorOnline(userID string) {
	if g.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := g.mirror.SetOnline(ctx, userID); err != nil {
		g.logger.Warn("presence mirror update failed", "userID", userID, "error", err)
	}
}

func (g *Gateway) mirrorOffline(userID string) {
	if g.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := g.mirror.SetOffline(ctx, userID); err != nil {
		g.logger.Warn("presence mirror update failed", "userID", userID, "error", err)
	}
}
