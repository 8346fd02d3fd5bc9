package realtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AnupamNeon/Chat-app/internal/model"
	"github.com/AnupamNeon/Chat-app/internal/workerpool"
)

type fakeStatusStore struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeStatusStore) SetOnline(_ context.Context, id int64, online bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, online)
	now := time.Now()
	u := &model.User{ID: id, IsOnline: online}
	if !online {
		u.LastSeen = &now
	}
	return u, nil
}

func (f *fakeStatusStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestHub(t *testing.T) (*Hub, *fakeStatusStore) {
	t.Helper()
	pool := workerpool.New(2, 64, slog.Default())
	t.Cleanup(pool.Shutdown)
	status := &fakeStatusStore{}
	return NewHub(NewMemoryRegistry(), status, pool, slog.Default()), status
}

// recvEvent waits for the next event of the given type, skipping
// presence noise like online list refreshes.
func recvEvent(t *testing.T, c *Connection, eventType string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.writeChan:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q on conn %d", eventType, c.ID())
		}
	}
}

func TestHubPresenceFlipsOnFirstAndLast(t *testing.T) {
	hub, status := newTestHub(t)
	ctx := context.Background()

	c1 := testConn(1, 100)
	c2 := testConn(2, 100)

	hub.Register(ctx, c1)
	hub.Register(ctx, c2)
	if got := status.callCount(); got != 1 {
		t.Fatalf("SetOnline called %d times after two registrations, want 1", got)
	}

	hub.Deregister(ctx, c1)
	if got := status.callCount(); got != 1 {
		t.Fatalf("SetOnline called %d times while a connection remains, want 1", got)
	}

	hub.Deregister(ctx, c2)
	if got := status.callCount(); got != 2 {
		t.Fatalf("SetOnline called %d times after last disconnect, want 2", got)
	}

	status.mu.Lock()
	defer status.mu.Unlock()
	if !status.calls[0] || status.calls[1] {
		t.Fatalf("presence calls = %v, want [true false]", status.calls)
	}
}

func TestHubPushToUserReachesAllConnections(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	c1 := testConn(1, 100)
	c2 := testConn(2, 100)
	other := testConn(3, 200)
	hub.Register(ctx, c1)
	hub.Register(ctx, c2)
	hub.Register(ctx, other)

	hub.PushToUser(100, Event{Type: EventNewMessage, Data: "hi"})

	recvEvent(t, c1, EventNewMessage)
	recvEvent(t, c2, EventNewMessage)

	// the other user only ever sees presence traffic
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-other.writeChan:
			if ev.Type == EventNewMessage {
				t.Fatal("message leaked to an unrelated user")
			}
		case <-deadline:
			return
		}
	}
}

func TestHubRelayTypingAddressedOnly(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	sender := testConn(1, 1)
	receiver := testConn(2, 2)
	bystander := testConn(3, 3)
	hub.Register(ctx, sender)
	hub.Register(ctx, receiver)
	hub.Register(ctx, bystander)

	hub.RelayTyping(1, 2, true)

	ev := recvEvent(t, receiver, EventUserTyping)
	payload, ok := ev.Data.(TypingPayload)
	if !ok {
		t.Fatalf("payload type %T, want TypingPayload", ev.Data)
	}
	if payload.UserID != 1 || !payload.IsTyping {
		t.Fatalf("payload = %+v, want userId 1 typing", payload)
	}

	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-bystander.writeChan:
			if ev.Type == EventUserTyping {
				t.Fatal("typing indicator leaked to a bystander")
			}
		case <-deadline:
			return
		}
	}
}

func TestHubBroadcastsOnlineList(t *testing.T) {
	hub, _ := newTestHub(t)
	ctx := context.Background()

	c1 := testConn(1, 10)
	hub.Register(ctx, c1)
	c2 := testConn(2, 20)
	hub.Register(ctx, c2)

	var got []string
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-c1.writeChan:
			if ev.Type == EventOnlineUsers {
				got, _ = ev.Data.([]string)
			}
		case <-deadline:
			t.Fatalf("online list never reached both users, last = %v", got)
		}
	}
	if got[0] != "10" || got[1] != "20" {
		t.Fatalf("online list = %v, want [10 20]", got)
	}
}
