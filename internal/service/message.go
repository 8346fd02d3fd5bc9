package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/blob"
	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/realtime"
	"github.com/AnupamNeon/Chat-app/internal/repository"
	"github.com/AnupamNeon/Chat-app/pkg/snowflake"
)

const maxTextLen = 1000

// ConversationStore is the slice of the conversation repository the
// message flow needs.
type ConversationStore interface {
	FindByPair(ctx context.Context, a, b int64) (*model.Conversation, error)
	Create(ctx context.Context, convID int64, first *model.Message) (*model.Conversation, error)
	Append(ctx context.Context, convID int64, msg *model.Message) error
	MarkOneRead(ctx context.Context, convID, messageID, readerID int64) (*model.Message, error)
	MarkAllRead(ctx context.Context, convID, readerID int64) (int, error)
	ListMessages(ctx context.Context, convID int64, page, pageSize int) ([]*model.Message, int, error)
	SearchMessages(ctx context.Context, userID int64, query string) ([]*model.SearchResult, error)
	GetMessage(ctx context.Context, messageID int64) (*model.Message, error)
	GetMessageProjected(ctx context.Context, messageID int64) (*model.Message, error)
}

// UserChecker answers existence checks for message addressing.
type UserChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Deliverer pushes realtime events at users. The hub implements it; a
// fake stands in for tests.
type Deliverer interface {
	PushToUser(userID int64, ev realtime.Event)
}

type SendMessageRequest struct {
	Text        string `json:"text"`
	Image       string `json:"image"`
	ClientMsgID string `json:"clientMsgId"`
}

type MessagePage struct {
	Messages   []*model.Message `json:"messages"`
	Pagination model.Pagination `json:"pagination"`
}

// MessageService runs the send pipeline and read receipts.
type MessageService struct {
	convs         ConversationStore
	users         UserChecker
	blobs         blob.Store
	deliverer     Deliverer
	node          *snowflake.Node
	uploadTimeout time.Duration
}

func NewMessageService(convs ConversationStore, users UserChecker, blobs blob.Store, deliverer Deliverer, node *snowflake.Node, uploadTimeout time.Duration) *MessageService {
	if uploadTimeout <= 0 {
		uploadTimeout = 30 * time.Second
	}
	return &MessageService{
		convs:         convs,
		users:         users,
		blobs:         blobs,
		deliverer:     deliverer,
		node:          node,
		uploadTimeout: uploadTimeout,
	}
}

// Send validates, persists and fans out one message. The image upload
// is all or nothing: on upload failure no message is stored.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID int64, req *SendMessageRequest) (*model.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "message must have text or an image")
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return nil, apperr.Newf(apperr.KindInvalidArgument, "message text exceeds %d characters", maxTextLen)
	}
	if senderID == receiverID {
		return nil, apperr.New(apperr.KindInvalidArgument, "cannot send a message to yourself")
	}

	ok, err := s.users.Exists(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}

	var imageURL string
	if req.Image != "" {
		uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
		url, err := s.blobs.Upload(uploadCtx, req.Image)
		cancel()
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	msg := &model.Message{
		ID:          s.node.Generate().Int64(),
		ClientMsgID: req.ClientMsgID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Text:        text,
		Image:       imageURL,
		Status:      model.StatusSent,
		CreatedAt:   time.Now(),
	}

	if err := s.store(ctx, msg); err != nil {
		return nil, err
	}

	stored, err := s.convs.GetMessageProjected(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	ev := realtime.Event{Type: realtime.EventNewMessage, Data: stored}
	s.deliverer.PushToUser(receiverID, ev)
	s.deliverer.PushToUser(senderID, ev)
	return stored, nil
}

// store appends to the pair's conversation, creating it under the
// first message. A lost creation race falls back to an append.
func (s *MessageService) store(ctx context.Context, msg *model.Message) error {
	conv, err := s.convs.FindByPair(ctx, msg.SenderID, msg.ReceiverID)
	switch {
	case err == nil:
		msg.ConversationID = conv.ID
		return s.convs.Append(ctx, conv.ID, msg)
	case apperr.IsKind(err, apperr.KindNotFound):
		msg.ConversationID = s.node.Generate().Int64()
		_, err := s.convs.Create(ctx, msg.ConversationID, msg)
		if errors.Is(err, repository.ErrPairExists) {
			conv, ferr := s.convs.FindByPair(ctx, msg.SenderID, msg.ReceiverID)
			if ferr != nil {
				return ferr
			}
			msg.ConversationID = conv.ID
			return s.convs.Append(ctx, conv.ID, msg)
		}
		return err
	default:
		return err
	}
}

// List returns one ascending page of the thread with the peer. A pair
// with no conversation yet lists as empty, not as an error.
func (s *MessageService) List(ctx context.Context, userID, peerID int64, page, pageSize int) (*MessagePage, error) {
	page, pageSize = repository.ClampPage(page, pageSize)

	conv, err := s.convs.FindByPair(ctx, userID, peerID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return &MessagePage{
				Messages:   []*model.Message{},
				Pagination: model.Pagination{Page: page, TotalPages: 0, Total: 0},
			}, nil
		}
		return nil, err
	}

	msgs, total, err := s.convs.ListMessages(ctx, conv.ID, page, pageSize)
	if err != nil {
		return nil, err
	}
	totalPages := (total + pageSize - 1) / pageSize
	return &MessagePage{
		Messages:   msgs,
		Pagination: model.Pagination{Page: page, TotalPages: totalPages, Total: total},
	}, nil
}

// MarkRead flips one received message to read and tells the sender.
// Re-reading an already read message is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, readerID, messageID int64) (*model.Message, error) {
	msg, err := s.convs.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != readerID && msg.ReceiverID != readerID {
		return nil, repository.ErrMessageNotFound
	}

	alreadyRead := msg.Status == model.StatusRead
	updated, err := s.convs.MarkOneRead(ctx, msg.ConversationID, messageID, readerID)
	if err != nil {
		return nil, err
	}

	if !alreadyRead && updated.ReadAt != nil {
		s.deliverer.PushToUser(updated.SenderID, realtime.Event{
			Type: realtime.EventMessageRead,
			Data: realtime.MessageReadPayload{MessageID: updated.ID, ReadAt: *updated.ReadAt},
		})
	}
	return updated, nil
}

// MarkAllRead clears the reader's unread count against one peer and
// tells the peer how the thread stands.
func (s *MessageService) MarkAllRead(ctx context.Context, readerID, peerID int64) (int, error) {
	conv, err := s.convs.FindByPair(ctx, readerID, peerID)
	if err != nil {
		return 0, err
	}

	count, err := s.convs.MarkAllRead(ctx, conv.ID, readerID)
	if err != nil {
		return 0, err
	}

	// Notify even when nothing flipped so the peer's view refreshes
	// after a redundant read-all.
	s.deliverer.PushToUser(peerID, realtime.Event{
		Type: realtime.EventAllMessagesRead,
		Data: realtime.AllMessagesReadPayload{UserID: readerID, ConversationID: conv.ID},
	})
	return count, nil
}

// Search finds the caller's messages containing the query text.
func (s *MessageService) Search(ctx context.Context, userID int64, query string) ([]*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, apperr.New(apperr.KindInvalidArgument, "search query must be at least 2 characters")
	}
	return s.convs.SearchMessages(ctx, userID, query)
}
