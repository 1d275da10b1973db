package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one message received over the real-time channel.
type Event struct {
	Type       string    `json:"type"`
	JobID      string    `json:"job_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Version    int       `json:"version,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Subscribe opens a websocket to the server and invokes onEvent for every
// event in the given room; an empty room subscribes to all job events.
// The first event is always connection.established. Return an error from
// onEvent to stop; Subscribe then returns that error. Subscribe blocks until
// the stream ends or ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, room string, onEvent func(Event) error) error {
	wsEndpoint := c.baseURL + "/ws"
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if room != "" {
		q := u.Query()
		q.Set("room", room)
		u.RawQuery = q.Encode()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		if err := onEvent(event); err != nil {
			return err
		}
	}
}

// WatchJob subscribes to a single job's channel until the job reaches a
// terminal state, invoking onEvent along the way. The terminal event is
// delivered to onEvent before WatchJob returns.
func (c *Client) WatchJob(ctx context.Context, jobID string, onEvent func(Event) error) error {
	var errStop = fmt.Errorf("done")
	err := c.Subscribe(ctx, "job:"+jobID, func(event Event) error {
		if cbErr := onEvent(event); cbErr != nil {
			return cbErr
		}
		if event.Type == "job.completed" || event.Type == "job.failed" {
			return errStop
		}
		return nil
	})
	if err == errStop {
		return nil
	}
	return err
}
