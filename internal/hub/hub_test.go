package hub

import (
	"strconv"
	"testing"
	"time"

	"github.com/park285/chess-arena/pkg/wire"
)

func recvEvent(t *testing.T, sub *Subscriber) wire.Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return wire.Event{}
	}
}

func TestPublish_FanOutPreservesOrder(t *testing.T) {
	h := New(nil)
	a := h.Subscribe("s1")
	b := h.Subscribe("s1")

	for i := 0; i < 10; i++ {
		h.Publish("s1", wire.Event{Type: wire.EvtMoveApplied, SessionID: strconv.Itoa(i)})
	}
	for _, sub := range []*Subscriber{a, b} {
		for i := 0; i < 10; i++ {
			evt := recvEvent(t, sub)
			if evt.SessionID != strconv.Itoa(i) {
				t.Fatalf("event %d arrived as %q", i, evt.SessionID)
			}
		}
	}
}

func TestPublish_SessionIsolation(t *testing.T) {
	h := New(nil)
	a := h.Subscribe("s1")
	b := h.Subscribe("s2")

	h.Publish("s1", wire.Event{Type: wire.EvtMoveApplied, SessionID: "s1"})
	if evt := recvEvent(t, a); evt.SessionID != "s1" {
		t.Fatalf("wrong event: %+v", evt)
	}
	select {
	case evt := <-b.Events():
		t.Fatalf("cross-session delivery: %+v", evt)
	default:
	}
}

func TestPublish_SlowSubscriberDroppedOthersSurvive(t *testing.T) {
	h := New(nil)
	slow := h.Subscribe("s1")
	fast := h.Subscribe("s1")

	// Fill the slow subscriber's buffer, draining the fast one as we go.
	for i := 0; i < defaultBuffer; i++ {
		h.Publish("s1", wire.Event{Type: wire.EvtMoveApplied})
		<-fast.Events()
	}
	// One more overflows slow and drops it.
	h.Publish("s1", wire.Event{Type: wire.EvtMoveApplied})

	if evt := recvEvent(t, fast); evt.Type != wire.EvtMoveApplied {
		t.Fatalf("fast subscriber starved: %+v", evt)
	}
	if h.Count("s1") != 1 {
		t.Fatalf("count = %d, want 1 after drop", h.Count("s1"))
	}

	// The dropped channel drains its backlog and then reports closure.
	for i := 0; i < defaultBuffer; i++ {
		<-slow.Events()
	}
	if _, ok := <-slow.Events(); ok {
		t.Fatalf("dropped subscription not closed")
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("s1")
	if h.Count("s1") != 1 {
		t.Fatalf("count = %d", h.Count("s1"))
	}
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)
	if h.Count("s1") != 0 {
		t.Fatalf("count = %d after unsubscribe", h.Count("s1"))
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("channel open after unsubscribe")
	}
	// Publishing to a drained session is a no-op.
	h.Publish("s1", wire.Event{Type: wire.EvtMoveApplied})
}
