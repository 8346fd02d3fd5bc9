package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/realtime"
	"github.com/AnupamNeon/Chat-app/internal/service"
)

const sessionCookie = "jwt"

// APIError is a non-2xx REST answer.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Kind    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Kind, e.Message)
}

// ErrNotConnected is returned when an outbound realtime event is
// attempted while the event listener has no live connection.
var ErrNotConnected = errors.New("realtime listener not connected")

// Client talks to the chat service over REST and a websocket.
type Client struct {
	baseURL string
	http    *http.Client
	token   string

	store *Store

	// Live listener connection, replaced across reconnects.
	mu sync.Mutex
	ws *websocket.Conn

	// Reconnect policy for the event listener.
	maxReconnects int
	reconnectWait time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithReconnectPolicy(maxAttempts int, wait time.Duration) Option {
	return func(c *Client) {
		c.maxReconnects = maxAttempts
		c.reconnectWait = wait
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Timeout: 30 * time.Second},
		maxReconnects: 5,
		reconnectWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the reconciliation store, available after login.
func (c *Client) Store() *Store {
	return c.store
}

func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*model.User, error) {
	return c.authenticate(ctx, "/api/auth/signup", service.SignupRequest{
		FullName: fullName,
		Email:    email,
		Password: password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	return c.authenticate(ctx, "/api/auth/login", service.LoginRequest{
		Email:    email,
		Password: password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*model.User, error) {
	resp, err := c.doRaw(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			c.token = cookie.Value
		}
	}

	var user model.User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	c.store = NewStore(user.ID)
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRaw(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.token = ""
	return decode(resp, nil)
}

func (c *Client) Check(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, profilePic string) (*model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPut, "/api/auth/update-profile", nil,
		service.UpdateProfileRequest{ProfilePic: profilePic}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Send runs the optimistic flow: insert a pending entry, call the
// endpoint, and replace or drop the entry depending on the outcome.
func (c *Client) Send(ctx context.Context, peerID int64, text, image string) (*model.Message, error) {
	clientMsgID := c.store.BeginSend(peerID, text, image)

	var msg model.Message
	err := c.do(ctx, http.MethodPost, "/api/messages/send/"+formatID(peerID), nil,
		service.SendMessageRequest{Text: text, Image: image, ClientMsgID: clientMsgID}, &msg)
	if err != nil {
		c.store.FailSend(clientMsgID)
		return nil, err
	}
	c.store.ConfirmSend(clientMsgID, &msg)
	return &msg, nil
}

func (c *Client) Thread(ctx context.Context, peerID int64, page, limit int) (*service.MessagePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out service.MessagePage
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+formatID(peerID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkRead(ctx context.Context, messageID int64) (*model.Message, error) {
	var msg model.Message
	if err := c.do(ctx, http.MethodPatch, "/api/messages/"+formatID(messageID)+"/read", nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) MarkAllRead(ctx context.Context, peerID int64) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/messages/"+formatID(peerID)+"/read-all", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]*model.SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)

	var out []*model.SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/messages/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Sidebar(ctx context.Context) ([]*model.SidebarUser, error) {
	var out []*model.SidebarUser
	if err := c.do(ctx, http.MethodGet, "/api/users/sidebar", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Listen connects the websocket and feeds events into the store until
// the context ends. Reconnection is automatic with bounded attempts;
// exhausting them returns the last error so the caller can prompt a
// manual refresh. onEvent, when non-nil, observes every event after
// the store has applied it.
func (c *Client) Listen(ctx context.Context, onEvent func(realtime.Event)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(c.token)

	attempts := 0
	var lastErr error
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ws, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			lastErr = err
		} else {
			attempts = 0
			c.setConn(ws)
			lastErr = c.readEvents(ctx, ws, onEvent)
			c.setConn(nil)
			ws.Close(websocket.StatusNormalClosure, "done")
			if ctx.Err() != nil {
				return nil
			}
		}

		attempts++
		if attempts > c.maxReconnects {
			return fmt.Errorf("gave up after %d reconnect attempts: %w", c.maxReconnects, lastErr)
		}
		select {
		case <-time.After(c.reconnectWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendTyping tells the peer the caller started or stopped composing.
// It requires a live listener connection.
func (c *Client) SendTyping(ctx context.Context, peerID int64, isTyping bool) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	evType := realtime.EventTypingStop
	if isTyping {
		evType = realtime.EventTypingStart
	}
	return wsjson.Write(ctx, ws, realtime.Event{
		Type: evType,
		Data: realtime.TypingRequest{ReceiverID: peerID},
	})
}

func (c *Client) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
}

func (c *Client) readEvents(ctx context.Context, ws *websocket.Conn, onEvent func(realtime.Event)) error {
	for {
		var raw struct {
			Type string          `json:"event"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, ws, &raw); err != nil {
			return err
		}

		ev := realtime.Event{Type: raw.Type}
		switch raw.Type {
		case realtime.EventNewMessage:
			var msg model.Message
			if err := json.Unmarshal(raw.Data, &msg); err != nil {
				continue
			}
			c.store.ApplyNewMessage(&msg)
			ev.Data = &msg
		case realtime.EventMessageRead:
			var p realtime.MessageReadPayload
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				continue
			}
			c.store.ApplyRead(p.MessageID, p.ReadAt)
			ev.Data = p
		case realtime.EventAllMessagesRead:
			var p realtime.AllMessagesReadPayload
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				continue
			}
			c.store.ApplyAllRead(p.UserID, time.Now())
			ev.Data = p
		case realtime.EventUserTyping:
			var p realtime.TypingPayload
			if err := json.Unmarshal(raw.Data, &p); err != nil {
				continue
			}
			c.store.SetTyping(p.UserID, p.IsTyping)
			ev.Data = p
		default:
			ev.Data = raw.Data
		}

		if onEvent != nil {
			onEvent(ev)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.doRaw(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.token})
	}

	return c.http.Do(req)
}

func decode(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
