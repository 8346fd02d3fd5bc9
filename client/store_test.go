package client

import (
	"testing"
	"time"

	"github.com/AnupamNeon/Chat-app/internal/model"
)

func TestConfirmSendReplacesPendingInPlace(t *testing.T) {
	s := NewStore(1)

	clientMsgID := s.BeginSend(2, "hello", "")
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Status != StatusSending {
		t.Fatalf("after BeginSend: %+v, want one sending entry", msgs)
	}

	s.ConfirmSend(clientMsgID, &model.Message{
		ID: 100, ClientMsgID: clientMsgID, SenderID: 1, ReceiverID: 2,
		Text: "hello", Status: model.StatusSent, CreatedAt: time.Now(),
	})

	msgs = s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want the pending one replaced", len(msgs))
	}
	if msgs[0].ID != 100 || msgs[0].Status != model.StatusSent {
		t.Fatalf("entry = %+v, want authoritative copy", msgs[0])
	}
}

func TestFailSendLeavesNoGhost(t *testing.T) {
	s := NewStore(1)

	clientMsgID := s.BeginSend(2, "hello", "")
	s.FailSend(clientMsgID)

	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("got %d entries after failed send, want 0", len(got))
	}
}

func TestApplyNewMessageMatchesCorrelationToken(t *testing.T) {
	s := NewStore(1)

	clientMsgID := s.BeginSend(2, "hello", "")

	// realtime self-echo arrives before the REST response
	appended := s.ApplyNewMessage(&model.Message{
		ID: 100, ClientMsgID: clientMsgID, SenderID: 1, ReceiverID: 2,
		Text: "hello", Status: model.StatusSent, CreatedAt: time.Now(),
	})
	if appended {
		t.Fatal("self-echo with the correlation token must merge, not append")
	}
	if got := s.Messages(); len(got) != 1 || got[0].ID != 100 {
		t.Fatalf("entries = %+v, want exactly the authoritative message", got)
	}
}

func TestApplyNewMessageDuplicateByID(t *testing.T) {
	s := NewStore(1)

	msg := &model.Message{ID: 100, SenderID: 2, ReceiverID: 1, Text: "hi", Status: model.StatusSent, CreatedAt: time.Now()}
	if !s.ApplyNewMessage(msg) {
		t.Fatal("first delivery must append")
	}
	if s.ApplyNewMessage(msg) {
		t.Fatal("second delivery of the same id must not append")
	}
	if got := s.Messages(); len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
}

func TestApplyNewMessageDuplicateMergesStatusForward(t *testing.T) {
	s := NewStore(1)

	s.ApplyNewMessage(&model.Message{ID: 100, SenderID: 1, ReceiverID: 2, Text: "hi", Status: model.StatusSent, CreatedAt: time.Now()})

	readAt := time.Now()
	if s.ApplyNewMessage(&model.Message{ID: 100, SenderID: 1, ReceiverID: 2, Text: "hi", Status: model.StatusRead, ReadAt: &readAt}) {
		t.Fatal("redelivery of a known id must not append")
	}
	got := s.Messages()[0]
	if got.Status != model.StatusRead || got.ReadAt == nil {
		t.Fatalf("entry = %+v, want status raised to read", got)
	}

	// a stale redelivery must not pull the status back down
	s.ApplyNewMessage(&model.Message{ID: 100, SenderID: 1, ReceiverID: 2, Text: "hi", Status: model.StatusSent})
	if s.Messages()[0].Status != model.StatusRead {
		t.Fatal("status regressed on stale redelivery")
	}
}

func TestApplyNewMessageFuzzyMatch(t *testing.T) {
	s := NewStore(1)

	s.BeginSend(2, "hello", "")

	// token lost, content and timing still identify the send
	appended := s.ApplyNewMessage(&model.Message{
		ID: 100, SenderID: 1, ReceiverID: 2,
		Text: "hello", Status: model.StatusSent, CreatedAt: time.Now().Add(2 * time.Second),
	})
	if appended {
		t.Fatal("identical content within the window must merge")
	}
	if got := s.Messages(); len(got) != 1 || got[0].ID != 100 {
		t.Fatalf("entries = %+v, want merged authoritative message", got)
	}
}

func TestApplyNewMessageFuzzyWindowExpires(t *testing.T) {
	s := NewStore(1)

	s.BeginSend(2, "hello", "")

	appended := s.ApplyNewMessage(&model.Message{
		ID: 100, SenderID: 1, ReceiverID: 2,
		Text: "hello", Status: model.StatusSent, CreatedAt: time.Now().Add(10 * time.Second),
	})
	if !appended {
		t.Fatal("content match outside the window must append as new")
	}
	if got := s.Messages(); len(got) != 2 {
		t.Fatalf("got %d entries, want pending plus new", len(got))
	}
}

func TestApplyNewMessageDifferentContentAppends(t *testing.T) {
	s := NewStore(1)

	s.BeginSend(2, "hello", "")

	appended := s.ApplyNewMessage(&model.Message{
		ID: 100, SenderID: 2, ReceiverID: 1,
		Text: "hello back", Status: model.StatusSent, CreatedAt: time.Now(),
	})
	if !appended {
		t.Fatal("unrelated incoming message must append")
	}
}

func TestApplyReadIsMonotonic(t *testing.T) {
	s := NewStore(1)

	msg := &model.Message{ID: 100, SenderID: 1, ReceiverID: 2, Text: "hi", Status: model.StatusSent, CreatedAt: time.Now()}
	s.ApplyNewMessage(msg)

	readAt := time.Now()
	s.ApplyRead(100, readAt)
	got := s.Messages()[0]
	if got.Status != model.StatusRead || got.ReadAt == nil {
		t.Fatalf("after receipt: %+v, want read", got)
	}

	// replays and stale receipts must not move the status back
	s.ApplyRead(100, readAt.Add(time.Minute))
	if s.Messages()[0].Status != model.StatusRead {
		t.Fatal("status regressed on replay")
	}
}

func TestApplyAllReadMarksOwnMessagesOnly(t *testing.T) {
	s := NewStore(1)

	mine := &model.Message{ID: 1, SenderID: 1, ReceiverID: 2, Text: "a", Status: model.StatusSent, CreatedAt: time.Now()}
	theirs := &model.Message{ID: 2, SenderID: 2, ReceiverID: 1, Text: "b", Status: model.StatusSent, CreatedAt: time.Now()}
	s.ApplyNewMessage(mine)
	s.ApplyNewMessage(theirs)

	s.ApplyAllRead(2, time.Now())

	if mine.Status != model.StatusRead {
		t.Fatalf("own message status = %q, want read", mine.Status)
	}
	if theirs.Status != model.StatusSent {
		t.Fatalf("peer message status = %q, must stay untouched", theirs.Status)
	}
}

func TestTypingAutoExpires(t *testing.T) {
	s := NewStore(1, WithTypingTTL(30*time.Millisecond))

	s.SetTyping(2, true)
	if !s.IsTyping(2) {
		t.Fatal("flag must be set immediately")
	}

	deadline := time.Now().Add(time.Second)
	for s.IsTyping(2) {
		if time.Now().After(deadline) {
			t.Fatal("typing flag never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTypingStopClearsImmediately(t *testing.T) {
	s := NewStore(1, WithTypingTTL(time.Hour))

	s.SetTyping(2, true)
	s.SetTyping(2, false)
	if s.IsTyping(2) {
		t.Fatal("explicit stop must clear the flag")
	}
}

func TestResetKeepsPendingSends(t *testing.T) {
	s := NewStore(1)

	stale := &model.Message{ID: 50, SenderID: 2, ReceiverID: 1, Text: "old", Status: model.StatusSent, CreatedAt: time.Now()}
	s.ApplyNewMessage(stale)
	clientMsgID := s.BeginSend(2, "in flight", "")

	fresh := []*model.Message{
		{ID: 51, SenderID: 2, ReceiverID: 1, Text: "newer", Status: model.StatusSent, CreatedAt: time.Now()},
	}
	s.Reset(fresh)

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d entries, want server page plus pending send", len(msgs))
	}
	if msgs[0].ID != 51 || msgs[1].ClientMsgID != clientMsgID {
		t.Fatalf("entries = %+v, want [server page, pending]", msgs)
	}
}
