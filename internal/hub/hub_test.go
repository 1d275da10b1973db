package hub

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeDeliversConnectionEstablished(t *testing.T) {
	h := New(testLogger())

	sub := h.Subscribe(JobChannel("abc"))
	defer h.Unsubscribe(sub)

	ev := recvEvent(t, sub)
	if ev.Type != EventConnectionEstablished {
		t.Errorf("first event type = %q, want %q", ev.Type, EventConnectionEstablished)
	}
}

func TestPublishFansOutToAllChannelSubscribers(t *testing.T) {
	h := New(testLogger())

	sub1 := h.Subscribe("room")
	sub2 := h.Subscribe("room")
	other := h.Subscribe("elsewhere")
	defer h.Unsubscribe(sub1)
	defer h.Unsubscribe(sub2)
	defer h.Unsubscribe(other)

	// Drain the connection events.
	recvEvent(t, sub1)
	recvEvent(t, sub2)
	recvEvent(t, other)

	h.Publish("room", Event{Type: EventJobCompleted, JobID: "j1"})

	for _, sub := range []*Subscriber{sub1, sub2} {
		ev := recvEvent(t, sub)
		if ev.Type != EventJobCompleted || ev.JobID != "j1" {
			t.Errorf("received %+v, want completed event for j1", ev)
		}
	}

	select {
	case ev := <-other.C:
		t.Errorf("subscriber on another channel received %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	h := New(testLogger())

	h.Publish("room", Event{Type: EventJobCompleted, JobID: "early"})

	sub := h.Subscribe("room")
	defer h.Unsubscribe(sub)
	recvEvent(t, sub) // connection.established

	select {
	case ev := <-sub.C:
		t.Errorf("late subscriber received replayed event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDeliveryAndClosesStream(t *testing.T) {
	h := New(testLogger())

	sub := h.Subscribe("room")
	recvEvent(t, sub)
	h.Unsubscribe(sub)

	if n := h.SubscriberCount("room"); n != 0 {
		t.Errorf("SubscriberCount = %d after unsubscribe, want 0", n)
	}

	// Publishing after unsubscribe must not panic, and the stream is closed.
	h.Publish("room", Event{Type: EventJobRunning})
	if _, open := <-sub.C; open {
		t.Error("subscriber stream still open after unsubscribe")
	}

	// Double unsubscribe is a no-op.
	h.Unsubscribe(sub)
}

func TestSlowSubscriberDropsEventsInsteadOfBlocking(t *testing.T) {
	h := New(testLogger())

	sub := h.Subscribe("room")
	defer h.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Overflow the subscriber buffer without draining it.
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish("room", Event{Type: EventJobRunning, JobID: "j1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
