package realtime

import (
	"encoding/json"
	"strconv"
	"time"
)

// Event names on the realtime channel. Names are part of the wire
// protocol shared with clients.
const (
	EventNewMessage        = "newMessage"
	EventUserTyping        = "user-typing"
	EventMessageRead       = "messageRead"
	EventAllMessagesRead   = "allMessagesRead"
	EventOnlineUsers       = "getOnlineUsers"
	EventUserStatusChanged = "userStatusChanged"

	// inbound
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Event is the wire envelope for both directions.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// InboundEvent defers payload decoding until the type is known.
type InboundEvent struct {
	Type string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// TypingRequest is the payload of typing-start / typing-stop.
type TypingRequest struct {
	ReceiverID int64 `json:"receiverId,string"`
}

// TypingPayload is relayed to the addressed peer only.
type TypingPayload struct {
	UserID   int64 `json:"userId,string"`
	IsTyping bool  `json:"isTyping"`
}

// MessageReadPayload notifies a sender of a single read receipt.
type MessageReadPayload struct {
	MessageID int64     `json:"messageId,string"`
	ReadAt    time.Time `json:"readAt"`
}

// AllMessagesReadPayload notifies a sender that the peer consumed the
// whole thread.
type AllMessagesReadPayload struct {
	UserID         int64 `json:"userId,string"`
	ConversationID int64 `json:"conversationId,string"`
}

// StatusChangedPayload broadcasts a presence flip.
type StatusChangedPayload struct {
	UserID   int64      `json:"userId,string"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// OnlineUsersPayload carries the full online id list as strings, the
// same shape the ids take everywhere else on the wire.
func OnlineUsersPayload(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}
