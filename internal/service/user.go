package service

import (
	"context"

	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/realtime"
)

// SidebarStore lists users and the viewer's conversations.
type SidebarStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	ListOthers(ctx context.Context, viewerID int64) ([]*model.User, error)
	SetOnline(ctx context.Context, id int64, online bool) (*model.User, error)
}

// ConversationLister resolves per-peer unread counts and last messages.
type ConversationLister interface {
	ListForUser(ctx context.Context, userID int64) ([]*model.Conversation, error)
}

// Broadcaster pushes events at every connected user.
type Broadcaster interface {
	Broadcast(ev realtime.Event)
}

// UserService backs the sidebar and profile lookups.
type UserService struct {
	users       SidebarStore
	convs       ConversationLister
	broadcaster Broadcaster
}

func NewUserService(users SidebarStore, convs ConversationLister, broadcaster Broadcaster) *UserService {
	return &UserService{users: users, convs: convs, broadcaster: broadcaster}
}

// Sidebar returns every other account decorated with the viewer's
// unread count and the thread's last message. Order comes from the
// store: online users first, then by name.
func (s *UserService) Sidebar(ctx context.Context, viewerID int64) ([]*model.SidebarUser, error) {
	users, err := s.users.ListOthers(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	convs, err := s.convs.ListForUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	byPeer := make(map[int64]*model.Conversation, len(convs))
	for _, conv := range convs {
		pair := conv.Participants()
		peer := pair[0]
		if peer == viewerID {
			peer = pair[1]
		}
		byPeer[peer] = conv
	}

	out := make([]*model.SidebarUser, 0, len(users))
	for _, u := range users {
		entry := &model.SidebarUser{User: *u}
		if conv, ok := byPeer[u.ID]; ok {
			entry.UnreadCount = conv.UnreadFor(viewerID)
			entry.LastMessage = conv.LastMessage
		}
		out = append(out, entry)
	}
	return out, nil
}

// Get returns one account's public profile.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateStatus flips presence by explicit request and broadcasts the
// change. The websocket lifecycle drives the usual flips; this covers
// clients without a live socket.
func (s *UserService) UpdateStatus(ctx context.Context, userID int64, online bool) (*model.User, error) {
	user, err := s.users.SetOnline(ctx, userID, online)
	if err != nil {
		return nil, err
	}
	s.broadcaster.Broadcast(realtime.Event{
		Type: realtime.EventUserStatusChanged,
		Data: realtime.StatusChangedPayload{
			UserID:   user.ID,
			IsOnline: user.IsOnline,
			LastSeen: user.LastSeen,
		},
	})
	return user, nil
}
