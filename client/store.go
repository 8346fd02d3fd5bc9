package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnupamNeon/Chat-app/internal/model"
)

// StatusSending marks a local optimistic entry with no authoritative
// id yet. It never appears on the wire.
const StatusSending = "sending"

// fuzzyWindow bounds the creation-time delta under which an unmatched
// incoming message may be merged with a pending entry of identical
// content.
const fuzzyWindow = 5 * time.Second

const defaultTypingTTL = 3 * time.Second

// Store reconciles optimistic local sends with the authoritative
// copies the server produces, and tracks advisory typing state.
type Store struct {
	mu      sync.Mutex
	selfID  int64
	entries []*model.Message
	byID    map[int64]*model.Message
	pending map[string]*model.Message // clientMsgId -> optimistic entry

	typingTTL time.Duration
	typing    map[int64]*time.Timer
	now       func() time.Time
}

type StoreOption func(*Store)

// WithNow injects the clock.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithTypingTTL overrides the quiet period after which a typing flag
// clears on its own.
func WithTypingTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.typingTTL = ttl }
}

func NewStore(selfID int64, opts ...StoreOption) *Store {
	s := &Store{
		selfID:    selfID,
		byID:      make(map[int64]*model.Message),
		pending:   make(map[string]*model.Message),
		typingTTL: defaultTypingTTL,
		typing:    make(map[int64]*time.Timer),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginSend inserts an optimistic entry and returns its correlation
// token. The token travels with the send request so the authoritative
// copy comes back carrying it.
func (s *Store) BeginSend(receiverID int64, text, image string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	clientMsgID := uuid.NewString()
	entry := &model.Message{
		ClientMsgID: clientMsgID,
		SenderID:    s.selfID,
		ReceiverID:  receiverID,
		Text:        text,
		Image:       image,
		Status:      StatusSending,
		CreatedAt:   s.now(),
	}
	s.entries = append(s.entries, entry)
	s.pending[clientMsgID] = entry
	return clientMsgID
}

// ConfirmSend replaces the optimistic entry with the authoritative
// message from the send response.
func (s *Store) ConfirmSend(clientMsgID string, authoritative *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolve(clientMsgID, authoritative)
}

// FailSend drops the optimistic entry so no sending ghost survives a
// failed request.
func (s *Store) FailSend(clientMsgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[clientMsgID]
	if !ok {
		return
	}
	delete(s.pending, clientMsgID)
	for i, e := range s.entries {
		if e == entry {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
}

// ApplyNewMessage merges a realtime push into local state. Match order:
// correlation token, then authoritative id, then a content match
// against a pending entry within the fuzzy window. Only an unmatched
// message appends. Reports whether the message appended as new.
func (s *Store) ApplyNewMessage(msg *model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ClientMsgID != "" {
		if _, ok := s.pending[msg.ClientMsgID]; ok {
			s.resolve(msg.ClientMsgID, msg)
			return false
		}
	}
	if existing, ok := s.byID[msg.ID]; ok {
		s.update(existing, msg)
		return false
	}
	if entry := s.fuzzyMatch(msg); entry != nil {
		s.resolve(entry.ClientMsgID, msg)
		return false
	}

	s.entries = append(s.entries, msg)
	s.byID[msg.ID] = msg
	return true
}

// ApplyRead applies a single read receipt. Status never regresses.
func (s *Store) ApplyRead(messageID int64, readAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[messageID]
	if !ok {
		return
	}
	if model.StatusRank(model.StatusRead) > model.StatusRank(msg.Status) {
		msg.Status = model.StatusRead
		msg.ReadAt = &readAt
	}
}

// ApplyAllRead marks every own message addressed to the reader as
// read.
func (s *Store) ApplyAllRead(readerID int64, readAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.entries {
		if msg.SenderID != s.selfID || msg.ReceiverID != readerID {
			continue
		}
		if msg.Status != StatusSending && model.StatusRank(model.StatusRead) > model.StatusRank(msg.Status) {
			at := readAt
			msg.Status = model.StatusRead
			msg.ReadAt = &at
		}
	}
}

// SetTyping flips a peer's typing flag. A set flag clears on its own
// after the quiet period, tolerating a lost stop event.
func (s *Store) SetTyping(peerID int64, isTyping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.typing[peerID]; ok {
		timer.Stop()
		delete(s.typing, peerID)
	}
	if !isTyping {
		return
	}
	s.typing[peerID] = time.AfterFunc(s.typingTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.typing, peerID)
	})
}

// IsTyping reports a peer's current typing flag.
func (s *Store) IsTyping(peerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.typing[peerID]
	return ok
}

// Messages returns a snapshot of the local log in insertion order.
func (s *Store) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

// Reset replaces local state with an authoritative page, dropping
// everything but still-pending sends.
func (s *Store) Reset(msgs []*model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keep []*model.Message
	for _, e := range s.entries {
		if e.Status == StatusSending {
			keep = append(keep, e)
		}
	}
	s.entries = nil
	s.byID = make(map[int64]*model.Message)
	for _, m := range msgs {
		s.entries = append(s.entries, m)
		s.byID[m.ID] = m
	}
	s.entries = append(s.entries, keep...)
}

// resolve swaps the pending entry for the authoritative copy in place,
// keeping log position. Caller holds the lock.
func (s *Store) resolve(clientMsgID string, authoritative *model.Message) {
	entry, ok := s.pending[clientMsgID]
	if !ok {
		if _, seen := s.byID[authoritative.ID]; !seen {
			s.entries = append(s.entries, authoritative)
			s.byID[authoritative.ID] = authoritative
		}
		return
	}
	delete(s.pending, clientMsgID)
	for i, e := range s.entries {
		if e == entry {
			s.entries[i] = authoritative
			break
		}
	}
	s.byID[authoritative.ID] = authoritative
}

// update merges a duplicate push into the entry already known under
// the same id. Status and read time only move forward. Caller holds
// the lock.
func (s *Store) update(existing, incoming *model.Message) {
	if model.StatusRank(incoming.Status) > model.StatusRank(existing.Status) {
		existing.Status = incoming.Status
		existing.ReadAt = incoming.ReadAt
	}
}

// fuzzyMatch finds a pending entry with identical content and
// participants created within the fuzzy window. Caller holds the lock.
func (s *Store) fuzzyMatch(msg *model.Message) *model.Message {
	for _, entry := range s.pending {
		if entry.Text != msg.Text || entry.Image != msg.Image {
			continue
		}
		if entry.SenderID != msg.SenderID || entry.ReceiverID != msg.ReceiverID {
			continue
		}
		delta := msg.CreatedAt.Sub(entry.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta < fuzzyWindow {
			return entry
		}
	}
	return nil
}
