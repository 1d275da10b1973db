// Package client provides an HTTP client for the genvault server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client is an HTTP client for the genvault server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses GENVAULT_SERVER_URL env var or defaults to localhost:8585.
// Timeout can be configured via GENVAULT_CLIENT_TIMEOUT env var (default 2m for LLM-backed generation).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("GENVAULT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8585"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("GENVAULT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Job is the wire representation of a generation job.
type Job struct {
	JobID            string         `json:"job_id"`
	ArtifactType     string         `json:"artifact_type"`
	RequestText      string         `json:"request_text"`
	Options          map[string]any `json:"options,omitempty"`
	Status           string         `json:"status"`
	ResultArtifactID string         `json:"result_artifact_id,omitempty"`
	ResultVersion    int            `json:"result_version,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j Job) Terminal() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// ArtifactVersion is one immutable version of a stored artifact.
type ArtifactVersion struct {
	ArtifactID string         `json:"artifact_id"`
	Version    int            `json:"version"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	IsCurrent  bool           `json:"is_current"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ArtifactHistory is the full version chain of one artifact.
type ArtifactHistory struct {
	ArtifactID string            `json:"artifact_id"`
	Versions   []ArtifactVersion `json:"versions"`
}

// errorResponse mirrors the server's uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// do executes a request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%s): %s", resp.Status, errResp.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(raw))
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Generate submits a generation job and returns its ID immediately.
func (c *Client) Generate(ctx context.Context, artifactType, requestText string, options map[string]any) (string, error) {
	req := map[string]any{
		"artifact_type": artifactType,
		"request_text":  requestText,
	}
	if len(options) > 0 {
		req["options"] = options
	}

	var ack struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/generation/generate", req, &ack); err != nil {
		return "", err
	}
	return ack.JobID, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/generation/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var result struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/generation/jobs", nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// ListArtifacts returns the IDs of all stored artifacts.
func (c *Client) ListArtifacts(ctx context.Context) ([]string, error) {
	var result struct {
		Artifacts []string `json:"artifacts"`
	}
	if err := c.do(ctx, http.MethodGet, "/generation/artifacts", nil, &result); err != nil {
		return nil, err
	}
	return result.Artifacts, nil
}

// GetArtifact retrieves the current version of an artifact.
func (c *Client) GetArtifact(ctx context.Context, artifactID string) (*ArtifactVersion, error) {
	var v ArtifactVersion
	if err := c.do(ctx, http.MethodGet, "/generation/artifacts/"+artifactID, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetArtifactVersion retrieves one specific version of an artifact.
func (c *Client) GetArtifactVersion(ctx context.Context, artifactID string, version int) (*ArtifactVersion, error) {
	var v ArtifactVersion
	path := fmt.Sprintf("/generation/artifacts/%s/versions/%d", artifactID, version)
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListArtifactVersions retrieves the full version history of an artifact.
func (c *Client) ListArtifactVersions(ctx context.Context, artifactID string) (*ArtifactHistory, error) {
	var history ArtifactHistory
	if err := c.do(ctx, http.MethodGet, "/generation/artifacts/"+artifactID+"/versions", nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Stats returns the server's runtime statistics as raw JSON keys.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// PollOptions configures PollUntilTerminal.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPollOptions polls every 2 seconds for up to 2 minutes.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		Interval: 2 * time.Second,
		Timeout:  120 * time.Second,
	}
}

// PollUntilTerminal polls a job until it completes or fails. The optional
// onUpdate callback is invoked after every poll with the latest snapshot.
func (c *Client) PollUntilTerminal(ctx context.Context, jobID string, opts PollOptions, onUpdate func(Job)) (*Job, error) {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(*job)
		}
		if job.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("job %s still %s: %w", jobID, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}
