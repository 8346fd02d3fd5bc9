package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/model"
)

var (
	ErrConversationNotFound = apperr.New(apperr.KindNotFound, "conversation not found")
	ErrMessageNotFound      = apperr.New(apperr.KindNotFound, "message not found")
	ErrOwnMessageRead       = apperr.New(apperr.KindInvalidOperation, "cannot mark your own message as read")

	// ErrPairExists signals a lost race on the pair unique index.
	ErrPairExists = errors.New("conversation already exists for pair")
)

const (
	// listing window bounds (page size clamped into [1, maxPageSize])
	maxPageSize     = 100
	defaultPageSize = 50

	searchLimit = 50
)

const messageColumns = `id, conversation_id, client_msg_id, sender_id, receiver_id, text, image, status, read_at, created_at`

const conversationColumns = `id, user_low, user_high, unread_low, unread_high, last_message_id, created_at, updated_at`

// ConversationRepository owns the two-party threads and their message
// logs. Every mutation of a thread's counters and last-message cache
// happens in the same transaction as the message write, so the
// denormalized fields cannot drift from the log.
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a conversation repository.
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	var readAt *time.Time
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.ClientMsgID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Text,
		&m.Image,
		&m.Status,
		&readAt,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	m.ReadAt = readAt
	return m, nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := row.Scan(
		&c.ID,
		&c.UserLow,
		&c.UserHigh,
		&c.UnreadLow,
		&c.UnreadHigh,
		&c.LastMessageID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

// FindByPair looks up the one conversation of an unordered user pair.
// The pair is canonicalized first, so FindByPair(a, b) == FindByPair(b, a).
// Returns ErrConversationNotFound when absent; never creates.
func (r *ConversationRepository) FindByPair(ctx context.Context, a, b int64) (*model.Conversation, error) {
	low, high := model.CanonicalPair(a, b)
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_low = $1 AND user_high = $2`
	return scanConversation(r.db.QueryRow(ctx, query, low, high))
}

// GetByID fetches a conversation.
func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRow(ctx, query, id))
}

// Create stores a new conversation with its first message. Participants
// are persisted pre-sorted and the receiver's counter starts at 1. A
// concurrent first send between the same pair loses the unique-index
// race and gets ErrPairExists; the caller retries as an append.
func (r *ConversationRepository) Create(ctx context.Context, convID int64, first *model.Message) (*model.Conversation, error) {
	low, high := model.CanonicalPair(first.SenderID, first.ReceiverID)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	unreadLow, unreadHigh := 0, 0
	if first.ReceiverID == low {
		unreadLow = 1
	} else {
		unreadHigh = 1
	}

	conv := &model.Conversation{}
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (id, user_low, user_high, unread_low, unread_high, last_message_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+conversationColumns,
		convID, low, high, unreadLow, unreadHigh, first.ID,
	).Scan(
		&conv.ID, &conv.UserLow, &conv.UserHigh,
		&conv.UnreadLow, &conv.UnreadHigh, &conv.LastMessageID,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrPairExists
		}
		return nil, err
	}

	first.ConversationID = conv.ID
	if err := insertMessage(ctx, tx, first); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return conv, nil
}

// Append pushes a message onto an existing conversation, updating the
// last-message cache and the receiver's unread counter in the same
// transaction. The counter increment and the GREATEST guard on
// last_message_id are single atomic statements, so two concurrent
// appends to the same conversation never lose an increment and the
// cache always points at the newest message id.
func (r *ConversationRepository) Append(ctx context.Context, convID int64, msg *model.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	msg.ConversationID = convID
	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations SET
			last_message_id = GREATEST(COALESCE(last_message_id, 0), $2),
			unread_low  = unread_low  + CASE WHEN user_low  = $3 THEN 1 ELSE 0 END,
			unread_high = unread_high + CASE WHEN user_high = $3 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
	`, convID, msg.ID, msg.ReceiverID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *model.Message) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, client_msg_id, sender_id, receiver_id, text, image, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		msg.ID, msg.ConversationID, msg.ClientMsgID,
		msg.SenderID, msg.ReceiverID, msg.Text, msg.Image,
		msg.Status, msg.CreatedAt,
	)
	return err
}

// MarkOneRead transitions a single message to read and decrements the
// reader's unread counter, floored at 0. Marking an already-read
// message is a no-op (idempotent, no double decrement). The sender
// cannot mark its own message.
func (r *ConversationRepository) MarkOneRead(ctx context.Context, convID, messageID, readerID int64) (*model.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	msg, err := scanMessage(tx.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 AND conversation_id = $2 FOR UPDATE`,
		messageID, convID))
	if err != nil {
		return nil, err
	}

	if msg.SenderID == readerID {
		return nil, ErrOwnMessageRead
	}

	if msg.Status == model.StatusRead {
		// already read: same end state, counter untouched
		return msg, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	msg.Status = model.StatusRead
	msg.ReadAt = &now

	if _, err := tx.Exec(ctx,
		`UPDATE messages SET status = $2, read_at = $3 WHERE id = $1`,
		msg.ID, msg.Status, now); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET
			unread_low  = CASE WHEN user_low  = $2 THEN GREATEST(unread_low  - 1, 0) ELSE unread_low  END,
			unread_high = CASE WHEN user_high = $2 THEN GREATEST(unread_high - 1, 0) ELSE unread_high END,
			updated_at = NOW()
		WHERE id = $1
	`, convID, readerID); err != nil {
		return nil, err
	}

	return msg, tx.Commit(ctx)
}

// MarkAllRead marks every unread message addressed to the reader and
// resets the reader's counter to 0. Returns the number touched.
func (r *ConversationRepository) MarkAllRead(ctx context.Context, convID, readerID int64) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE messages SET status = $3, read_at = NOW()
		WHERE conversation_id = $1 AND receiver_id = $2 AND status <> $3
	`, convID, readerID, model.StatusRead)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations SET
			unread_low  = CASE WHEN user_low  = $2 THEN 0 ELSE unread_low  END,
			unread_high = CASE WHEN user_high = $2 THEN 0 ELSE unread_high END,
			updated_at = NOW()
		WHERE id = $1
	`, convID, readerID); err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), tx.Commit(ctx)
}

// ClampPage normalizes paging input: page >= 1, size in [1, 100]. Zero
// means unset and takes the default; a supplied size below 1 clamps to
// 1 rather than silently widening to the default.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize == 0:
		pageSize = defaultPageSize
	case pageSize < 0:
		pageSize = 1
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ListMessages returns one display page. The window is selected newest
// first for pagination, then reversed so the slice reads oldest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, convID int64, page, pageSize int) ([]*model.Message, int, error) {
	page, pageSize = ClampPage(page, pageSize)
	offset := (page - 1) * pageSize

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, convID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, convID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// query was descending; reverse for ascending display order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, total, nil
}

// escapeLike neutralizes LIKE metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SearchMessages scans the text of every conversation the user
// participates in, case-insensitive substring match, newest first,
// capped at 50 results.
func (r *ConversationRepository) SearchMessages(ctx context.Context, userID int64, query string) ([]*model.SearchResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.conversation_id, m.client_msg_id, m.sender_id, m.receiver_id,
		       m.text, m.image, m.status, m.read_at, m.created_at,
		       u.full_name, u.profile_pic
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN users u ON u.id = m.sender_id
		WHERE (c.user_low = $1 OR c.user_high = $1)
		  AND m.text ILIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY m.created_at DESC
		LIMIT $3
	`, userID, escapeLike(query), searchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*model.SearchResult, 0)
	for rows.Next() {
		m := &model.Message{}
		var senderName, senderAvatar string
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.ClientMsgID, &m.SenderID, &m.ReceiverID,
			&m.Text, &m.Image, &m.Status, &m.ReadAt, &m.CreatedAt,
			&senderName, &senderAvatar,
		); err != nil {
			return nil, err
		}
		results = append(results, &model.SearchResult{
			ConversationID: m.ConversationID,
			Message:        m,
			SenderName:     senderName,
			SenderAvatar:   senderAvatar,
		})
	}
	return results, rows.Err()
}

// GetMessageProjected re-reads a persisted message with the sender and
// receiver display fields attached. Pure read, no side effects.
func (r *ConversationRepository) GetMessageProjected(ctx context.Context, messageID int64) (*model.Message, error) {
	m := &model.Message{}
	err := r.db.QueryRow(ctx, `
		SELECT m.id, m.conversation_id, m.client_msg_id, m.sender_id, m.receiver_id,
		       m.text, m.image, m.status, m.read_at, m.created_at,
		       s.full_name, s.profile_pic, t.full_name, t.profile_pic
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		JOIN users t ON t.id = m.receiver_id
		WHERE m.id = $1
	`, messageID).Scan(
		&m.ID, &m.ConversationID, &m.ClientMsgID, &m.SenderID, &m.ReceiverID,
		&m.Text, &m.Image, &m.Status, &m.ReadAt, &m.CreatedAt,
		&m.SenderName, &m.SenderAvatar, &m.ReceiverName, &m.ReceiverAvatar,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message without the display projection.
func (r *ConversationRepository) GetMessage(ctx context.Context, messageID int64) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, messageID))
}

// ListForUser returns every conversation the user participates in with
// the last-message cache resolved. Used by the sidebar.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]*model.Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE user_low = $1 OR user_high = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range convs {
		if c.LastMessageID == nil {
			continue
		}
		msg, err := r.GetMessage(ctx, *c.LastMessageID)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				continue
			}
			return nil, err
		}
		c.LastMessage = msg
	}
	return convs, nil
}
