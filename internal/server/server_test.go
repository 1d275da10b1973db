package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/genvault-go/internal/generate"
	"github.com/raphaelgruber/genvault-go/internal/hub"
	"github.com/raphaelgruber/genvault-go/internal/metrics"
	"github.com/raphaelgruber/genvault-go/internal/server"
	"github.com/raphaelgruber/genvault-go/internal/service"
	"github.com/raphaelgruber/genvault-go/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := testLogger()
	versions, err := store.Open(t.TempDir(), logger)
	require.NoError(t, err)

	registry := service.NewRegistry(nil, logger)
	events := hub.New(logger)
	collector := metrics.NewCollector()
	generator := generate.NewStaticGenerator(nil)
	runner := service.NewRunner(registry, versions, generator, events, collector, logger)

	srv := server.New(runner, registry, versions, events, collector, "test", logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func pollJob(t *testing.T, baseURL, jobID string) server.JobResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/generation/jobs/" + jobID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var job server.JobResponse
		decodeJSON(t, resp, &job)
		if job.Status == "completed" || job.Status == "failed" {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return server.JobResponse{}
}

func TestGenerateEndpointAcceptsAndCompletesJob(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/generation/generate", server.GenerateRequest{
		ArtifactType: "meeting_summary",
		RequestText:  "summarize the planning meeting",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack server.GenerateResponse
	decodeJSON(t, resp, &ack)
	require.NotEmpty(t, ack.JobID)
	assert.Equal(t, "queued", ack.Status)

	job := pollJob(t, ts.URL, ack.JobID)
	require.Equal(t, "completed", job.Status)
	assert.Equal(t, "meeting_summary", job.ResultArtifactID)
	assert.Equal(t, 1, job.ResultVersion)

	// The completed job's result must resolve in the store.
	artResp, err := http.Get(ts.URL + "/generation/artifacts/" + job.ResultArtifactID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, artResp.StatusCode)

	var current struct {
		ArtifactID string `json:"artifact_id"`
		Version    int    `json:"version"`
		Content    string `json:"content"`
		IsCurrent  bool   `json:"is_current"`
	}
	decodeJSON(t, artResp, &current)
	assert.Equal(t, "meeting_summary", current.ArtifactID)
	assert.Equal(t, 1, current.Version)
	assert.True(t, current.IsCurrent)
	assert.NotEmpty(t, current.Content)
}

func TestGenerateEndpointRejectsInvalidRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		req  server.GenerateRequest
	}{
		{"empty request text", server.GenerateRequest{ArtifactType: "meeting_summary", RequestText: "   "}},
		{"unknown artifact type", server.GenerateRequest{ArtifactType: "bogus", RequestText: "do it"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/generation/generate", tt.req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp server.ErrorResponse
			decodeJSON(t, resp, &errResp)
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestGenerateEndpointRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/generation/generate", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownJobAndArtifactReturn404(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/generation/jobs/nope",
		"/generation/artifacts/nope",
		"/generation/artifacts/nope/versions",
		"/generation/artifacts/nope/versions/1",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "path %s", path)
	}
}

func TestVersionEndpointsExposeHistory(t *testing.T) {
	ts := newTestServer(t)

	var lastJob server.JobResponse
	for i := 0; i < 2; i++ {
		resp := postJSON(t, ts.URL+"/generation/generate", server.GenerateRequest{
			ArtifactType: "action_items",
			RequestText:  "extract the action items",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ack server.GenerateResponse
		decodeJSON(t, resp, &ack)
		lastJob = pollJob(t, ts.URL, ack.JobID)
		require.Equal(t, "completed", lastJob.Status)
	}
	require.Equal(t, 2, lastJob.ResultVersion)

	resp, err := http.Get(ts.URL + "/generation/artifacts/action_items/versions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		ArtifactID string `json:"artifact_id"`
		Versions   []struct {
			Version   int  `json:"version"`
			IsCurrent bool `json:"is_current"`
		} `json:"versions"`
	}
	decodeJSON(t, resp, &history)
	require.Len(t, history.Versions, 2)
	assert.False(t, history.Versions[0].IsCurrent)
	assert.True(t, history.Versions[1].IsCurrent)

	// A specific non-current version stays addressable.
	vResp, err := http.Get(ts.URL + "/generation/artifacts/action_items/versions/1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, vResp.StatusCode)
	var v1 struct {
		Version   int  `json:"version"`
		IsCurrent bool `json:"is_current"`
	}
	decodeJSON(t, vResp, &v1)
	assert.Equal(t, 1, v1.Version)
	assert.False(t, v1.IsCurrent)

	badResp, err := http.Get(ts.URL + "/generation/artifacts/action_items/versions/zero")
	require.NoError(t, err)
	badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	decodeJSON(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["ready"])

	statsResp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, statsResp.StatusCode)
	var stats map[string]any
	decodeJSON(t, statsResp, &stats)
	assert.Contains(t, stats, "jobs_submitted")
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func readEvent(t *testing.T, conn *websocket.Conn) hub.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev hub.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketEstablishesAndAnswersPing(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, hub.EventConnectionEstablished, ev.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	ev = readEvent(t, conn)
	assert.Equal(t, hub.EventPong, ev.Type)
}

func TestWebSocketStreamsJobLifecycle(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws?room=jobs"), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	require.Equal(t, hub.EventConnectionEstablished, ev.Type)

	resp := postJSON(t, ts.URL+"/generation/generate", server.GenerateRequest{
		ArtifactType: "decision_log",
		RequestText:  "record the decisions",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack server.GenerateResponse
	decodeJSON(t, resp, &ack)

	var types []string
	for {
		ev := readEvent(t, conn)
		require.Equal(t, ack.JobID, ev.JobID)
		types = append(types, ev.Type)
		if ev.Type == hub.EventJobCompleted || ev.Type == hub.EventJobFailed {
			assert.Equal(t, hub.EventJobCompleted, ev.Type)
			assert.Equal(t, "decision_log", ev.ArtifactID)
			assert.Equal(t, 1, ev.Version)
			break
		}
	}
	assert.Equal(t, []string{hub.EventJobQueued, hub.EventJobRunning, hub.EventJobCompleted}, types)

	// The push is consistent with the durable record.
	job := pollJob(t, ts.URL, ack.JobID)
	assert.Equal(t, "completed", job.Status)
}
