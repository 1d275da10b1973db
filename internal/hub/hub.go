// Package hub fans job and connection events out to real-time subscribers.
package hub

import (
	"log/slog"
	"sync"
	"time"
)

// Event types pushed over the real-time channel.
const (
	EventConnectionEstablished = "connection.established"
	EventPing                  = "ping"
	EventPong                  = "pong"
	EventJobQueued             = "job.queued"
	EventJobRunning            = "job.running"
	EventJobCompleted          = "job.completed"
	EventJobFailed             = "job.failed"
)

// BroadcastChannel receives every job event in addition to the per-job channel.
const BroadcastChannel = "jobs"

// JobChannel returns the per-job event channel name.
func JobChannel(jobID string) string {
	return "job:" + jobID
}

// Event is a typed message delivered to subscribers.
type Event struct {
	Type       string    `json:"type"`
	JobID      string    `json:"job_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Version    int       `json:"version,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// subscriberBuffer bounds how far a slow subscriber may lag before live
// events are dropped for it. Delivery is at-most-once, best effort; polling
// is the authoritative fallback.
const subscriberBuffer = 16

// Subscriber is one live listener on a channel.
type Subscriber struct {
	C       <-chan Event
	channel string
	events  chan Event
}

// Channel returns the channel this subscriber listens on.
func (s *Subscriber) Channel() string {
	return s.channel
}

// Hub maintains per-channel subscriber sets. Events published to a channel
// fan out to all currently-subscribed listeners; there is no replay buffer,
// so listeners joining after an event never receive it retroactively.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscriber]struct{}
	logger *slog.Logger
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new listener on channel and immediately delivers a
// connection-established event to it.
func (h *Hub) Subscribe(channel string) *Subscriber {
	events := make(chan Event, subscriberBuffer)
	sub := &Subscriber{C: events, channel: channel, events: events}

	h.mu.Lock()
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[channel] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	sub.events <- Event{Type: EventConnectionEstablished, Timestamp: time.Now().UTC()}

	h.logger.Debug("subscriber joined", "channel", channel)
	return sub
}

// Unsubscribe removes a listener and closes its event stream. Dropping a
// subscriber forgoes only future live notifications; durable job and version
// state is unaffected.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	set, ok := h.subs[sub.channel]
	if ok {
		if _, member := set[sub]; member {
			delete(set, sub)
			close(sub.events)
			if len(set) == 0 {
				delete(h.subs, sub.channel)
			}
		}
	}
	h.mu.Unlock()

	h.logger.Debug("subscriber left", "channel", sub.channel)
}

// Publish fans event out to every subscriber currently on channel. Sends are
// non-blocking: a subscriber whose buffer is full misses the event and must
// recover the true state by polling.
func (h *Hub) Publish(channel string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[channel] {
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				"channel", channel, "type", event.Type)
		}
	}
}

// SubscriberCount returns the number of live listeners on channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
