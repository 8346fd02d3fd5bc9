package realtime

import (
	"context"
	"log/slog"

	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/workerpool"
)

// StatusStore persists presence flips. Going offline also stamps the
// user's last seen time.
type StatusStore interface {
	SetOnline(ctx context.Context, id int64, online bool) (*model.User, error)
}

// Bridge relays events to other instances of the service. A single
// instance deployment runs without one.
type Bridge interface {
	PublishToUser(userID int64, ev Event) error
	PublishBroadcast(ev Event) error
}

// Hub owns event fan-out. Handlers hand it connections; services hand
// it events addressed to users.
type Hub struct {
	registry Registry
	status   StatusStore
	pool     *workerpool.Pool
	bridge   Bridge
	logger   *slog.Logger
}

func NewHub(registry Registry, status StatusStore, pool *workerpool.Pool, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		status:   status,
		pool:     pool,
		logger:   logger,
	}
}

// SetBridge wires cross-instance relaying. Call before serving traffic.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

// Register adds a connection, flips the user online on their first
// one, and broadcasts the refreshed online list.
func (h *Hub) Register(ctx context.Context, c *Connection) {
	first := h.registry.Add(c)
	h.logger.Info("websocket connected", "connId", c.ID(), "userId", c.UserID(), "firstConn", first)

	if first {
		user, err := h.status.SetOnline(ctx, c.UserID(), true)
		if err != nil {
			h.logger.Error("failed to mark user online", "userId", c.UserID(), "error", err)
		} else {
			h.Broadcast(Event{Type: EventUserStatusChanged, Data: StatusChangedPayload{
				UserID:   user.ID,
				IsOnline: true,
			}})
		}
	}
	h.broadcastOnlineList()
}

// Deregister removes a connection. The user goes offline only when
// their last connection drops.
func (h *Hub) Deregister(ctx context.Context, c *Connection) {
	last := h.registry.Remove(c)
	c.Close()
	h.logger.Info("websocket disconnected", "connId", c.ID(), "userId", c.UserID(), "lastConn", last)

	if last {
		user, err := h.status.SetOnline(ctx, c.UserID(), false)
		if err != nil {
			h.logger.Error("failed to mark user offline", "userId", c.UserID(), "error", err)
		} else {
			h.Broadcast(Event{Type: EventUserStatusChanged, Data: StatusChangedPayload{
				UserID:   user.ID,
				IsOnline: false,
				LastSeen: user.LastSeen,
			}})
		}
	}
	h.broadcastOnlineList()
}

// PushToUser delivers an event to every live connection of one user,
// locally and through the bridge when one is configured.
func (h *Hub) PushToUser(userID int64, ev Event) {
	h.pushLocal(userID, ev)
	if h.bridge != nil {
		if err := h.bridge.PublishToUser(userID, ev); err != nil {
			h.logger.Error("bridge publish failed", "userId", userID, "event", ev.Type, "error", err)
		}
	}
}

func (h *Hub) pushLocal(userID int64, ev Event) {
	for _, c := range h.registry.Connections(userID) {
		conn := c
		h.pool.Submit(func() {
			conn.Send(ev)
		})
	}
}

// Broadcast delivers an event to every live connection.
func (h *Hub) Broadcast(ev Event) {
	h.broadcastLocal(ev)
	if h.bridge != nil {
		if err := h.bridge.PublishBroadcast(ev); err != nil {
			h.logger.Error("bridge broadcast failed", "event", ev.Type, "error", err)
		}
	}
}

func (h *Hub) broadcastLocal(ev Event) {
	for _, c := range h.registry.All() {
		conn := c
		h.pool.Submit(func() {
			conn.Send(ev)
		})
	}
}

func (h *Hub) broadcastOnlineList() {
	h.Broadcast(Event{Type: EventOnlineUsers, Data: OnlineUsersPayload(h.registry.OnlineIDs())})
}

// RelayTyping forwards a typing indicator to the addressed peer only.
func (h *Hub) RelayTyping(senderID, receiverID int64, isTyping bool) {
	h.PushToUser(receiverID, Event{Type: EventUserTyping, Data: TypingPayload{
		UserID:   senderID,
		IsTyping: isTyping,
	}})
}

// DeliverLocal feeds bridged events back into this instance without
// republishing them.
func (h *Hub) DeliverLocal(userID int64, ev Event) {
	h.pushLocal(userID, ev)
}

// BroadcastLocal feeds bridged broadcasts back into this instance
// without republishing them.
func (h *Hub) BroadcastLocal(ev Event) {
	h.broadcastLocal(ev)
}

// OnlineIDs exposes the current online set.
func (h *Hub) OnlineIDs() []int64 {
	return h.registry.OnlineIDs()
}
