package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/AnupamNeon/Chat-app/internal/config"
)

// Subjects of the cross-instance relay. User events carry the target
// user id as the last token so instances can subscribe with a wildcard.
const (
	subjectUserPrefix  = "chat.events.user."
	subjectUserPattern = "chat.events.user.*"
	subjectBroadcast   = "chat.events.broadcast"
)

type bridgeEnvelope struct {
	NodeID string `json:"nodeId"`
	Event  Event  `json:"event"`
}

// NATSBridge relays hub events between service instances. Every
// instance publishes with its own node id and ignores its own messages
// on the way back in.
type NATSBridge struct {
	conn   *nats.Conn
	nodeID string
	logger *slog.Logger
}

func NewNATSBridge(cfg config.NATSConfig, nodeID string, logger *slog.Logger) (*NATSBridge, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSBridge{conn: conn, nodeID: nodeID, logger: logger}, nil
}

// Start subscribes the bridge and feeds foreign events into the hub.
func (b *NATSBridge) Start(hub *Hub) error {
	if _, err := b.conn.Subscribe(subjectUserPattern, func(msg *nats.Msg) {
		userID, ok := userIDFromSubject(msg.Subject)
		if !ok {
			b.logger.Warn("malformed bridge subject", "subject", msg.Subject)
			return
		}
		env, ok := b.decode(msg.Data)
		if !ok {
			return
		}
		hub.DeliverLocal(userID, env.Event)
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectUserPattern, err)
	}

	if _, err := b.conn.Subscribe(subjectBroadcast, func(msg *nats.Msg) {
		env, ok := b.decode(msg.Data)
		if !ok {
			return
		}
		hub.BroadcastLocal(env.Event)
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", subjectBroadcast, err)
	}

	return nil
}

func (b *NATSBridge) PublishToUser(userID int64, ev Event) error {
	data, err := json.Marshal(bridgeEnvelope{NodeID: b.nodeID, Event: ev})
	if err != nil {
		return err
	}
	return b.conn.Publish(subjectUserPrefix+strconv.FormatInt(userID, 10), data)
}

func (b *NATSBridge) PublishBroadcast(ev Event) error {
	data, err := json.Marshal(bridgeEnvelope{NodeID: b.nodeID, Event: ev})
	if err != nil {
		return err
	}
	return b.conn.Publish(subjectBroadcast, data)
}

func (b *NATSBridge) Close() {
	b.conn.Close()
}

// decode drops undecodable envelopes and this node's own messages.
func (b *NATSBridge) decode(data []byte) (bridgeEnvelope, bool) {
	var env bridgeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn("malformed bridge message", "error", err)
		return env, false
	}
	if env.NodeID == b.nodeID {
		return env, false
	}
	return env, true
}

func userIDFromSubject(subject string) (int64, bool) {
	raw, ok := strings.CutPrefix(subject, subjectUserPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
