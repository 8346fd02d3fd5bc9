package model

import "time"

// Message status values. Transitions are monotonic:
// sent -> delivered -> read, never backwards.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// StatusRank orders statuses for monotonicity checks. Unknown statuses
// rank lowest so they can never overwrite a real one.
func StatusRank(status string) int {
	switch status {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Message is owned by exactly one conversation. ClientMsgID is the
// client-supplied correlation token echoed back on the realtime push so
// the sender can reconcile its optimistic copy by exact key.
type Message struct {
	ID             int64      `json:"id,string" db:"id"`
	ConversationID int64      `json:"conversationId,string" db:"conversation_id"`
	ClientMsgID    string     `json:"clientMsgId,omitempty" db:"client_msg_id"`
	SenderID       int64      `json:"senderId,string" db:"sender_id"`
	ReceiverID     int64      `json:"receiverId,string" db:"receiver_id"`
	Text           string     `json:"text" db:"text"`
	Image          string     `json:"image,omitempty" db:"image"`
	Status         string     `json:"status" db:"status"`
	ReadAt         *time.Time `json:"readAt,omitempty" db:"read_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`

	// display projection, filled by the read-model step after persistence
	SenderName     string `json:"senderName,omitempty"`
	SenderAvatar   string `json:"senderAvatar,omitempty"`
	ReceiverName   string `json:"receiverName,omitempty"`
	ReceiverAvatar string `json:"receiverAvatar,omitempty"`
}

// Conversation is the persistent two-party thread. Participants are
// stored canonically sorted (UserLow < UserHigh) so the pair is a unique
// key regardless of who sent first.
type Conversation struct {
	ID            int64     `json:"id,string" db:"id"`
	UserLow       int64     `json:"-" db:"user_low"`
	UserHigh      int64     `json:"-" db:"user_high"`
	UnreadLow     int       `json:"-" db:"unread_low"`
	UnreadHigh    int       `json:"-" db:"unread_high"`
	LastMessageID *int64    `json:"-" db:"last_message_id"`
	LastMessage   *Message  `json:"lastMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Participants returns the sorted pair.
func (c *Conversation) Participants() [2]int64 {
	return [2]int64{c.UserLow, c.UserHigh}
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	return userID == c.UserLow || userID == c.UserHigh
}

// UnreadFor returns the unread counter of one participant.
func (c *Conversation) UnreadFor(userID int64) int {
	switch userID {
	case c.UserLow:
		return c.UnreadLow
	case c.UserHigh:
		return c.UnreadHigh
	default:
		return 0
	}
}

// CanonicalPair sorts two user ids ascending. Every lookup and every
// write goes through this so at most one conversation exists per pair.
func CanonicalPair(a, b int64) (low, high int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// Pagination describes a page of a message listing.
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// SearchResult pairs a matched message with its conversation.
type SearchResult struct {
	ConversationID int64    `json:"conversationId,string"`
	Message        *Message `json:"message"`
	SenderName     string   `json:"senderName,omitempty"`
	SenderAvatar   string   `json:"senderAvatar,omitempty"`
}
