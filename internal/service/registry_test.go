package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateStartsQueued(t *testing.T) {
	r := NewRegistry(nil, testLogger())

	job, err := r.Create(context.Background(), "meeting_summary", "standup notes", map[string]any{"tone": "brief"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if job.Status != JobStatusQueued {
		t.Errorf("new job status = %s, want queued", job.Status)
	}
	if job.ID == "" {
		t.Error("new job has empty ID")
	}

	got, err := r.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ArtifactType != "meeting_summary" || got.RequestText != "standup notes" {
		t.Errorf("Get() = %+v, want the created job", got)
	}
}

func TestGetUnknownJobReturnsNotFound(t *testing.T) {
	r := NewRegistry(nil, testLogger())

	if _, err := r.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nope) error = %v, want ErrNotFound", err)
	}
}

func TestTransitionsFollowStateMachine(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, testLogger())

	job, err := r.Create(ctx, "meeting_summary", "notes", nil)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := r.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning() error: %v", err)
	}
	if err := r.MarkCompleted(ctx, job.ID, "meeting_summary", 1); err != nil {
		t.Fatalf("MarkCompleted() error: %v", err)
	}

	got, err := r.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != JobStatusCompleted || got.ResultArtifactID != "meeting_summary" || got.ResultVersion != 1 {
		t.Errorf("completed job = %+v, want completed with result pointer", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("UpdatedAt precedes CreatedAt after transitions")
	}
}

func TestTerminalStateCannotSkipRunning(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, testLogger())

	job, _ := r.Create(ctx, "meeting_summary", "notes", nil)

	if err := r.MarkCompleted(ctx, job.ID, "meeting_summary", 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkCompleted(queued job) error = %v, want ErrInvalidTransition", err)
	}
	if err := r.MarkFailed(ctx, job.ID, fmt.Errorf("boom")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkFailed(queued job) error = %v, want ErrInvalidTransition", err)
	}

	got, _ := r.Get(context.Background(), job.ID)
	if got.Status != JobStatusQueued {
		t.Errorf("rejected transitions mutated job to %s", got.Status)
	}
}

func TestTerminalJobsAreFrozen(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, testLogger())

	job, _ := r.Create(ctx, "meeting_summary", "notes", nil)
	_ = r.MarkRunning(ctx, job.ID)
	_ = r.MarkFailed(ctx, job.ID, fmt.Errorf("generation: model unreachable"))

	transitions := []struct {
		name string
		call func() error
	}{
		{"MarkRunning", func() error { return r.MarkRunning(ctx, job.ID) }},
		{"MarkCompleted", func() error { return r.MarkCompleted(ctx, job.ID, "x", 1) }},
		{"MarkFailed", func() error { return r.MarkFailed(ctx, job.ID, fmt.Errorf("again")) }},
	}
	for _, tt := range transitions {
		if err := tt.call(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s on failed job error = %v, want ErrInvalidTransition", tt.name, err)
		}
	}

	got, _ := r.Get(context.Background(), job.ID)
	if got.Status != JobStatusFailed || got.Error != "generation: model unreachable" {
		t.Errorf("terminal job mutated: %+v", got)
	}
}

func TestListReturnsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil, testLogger())

	var last string
	for i := 0; i < 3; i++ {
		job, err := r.Create(ctx, "meeting_summary", fmt.Sprintf("notes %d", i), nil)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		last = job.ID
		time.Sleep(time.Millisecond) // distinct CreatedAt
	}

	jobs := r.List(ctx)
	if len(jobs) != 3 {
		t.Fatalf("List() returned %d jobs, want 3", len(jobs))
	}
	if jobs[0].ID != last {
		t.Errorf("List()[0].ID = %s, want most recent %s", jobs[0].ID, last)
	}
}

func TestMirrorRowConvertsToSnapshot(t *testing.T) {
	artifactID := "meeting_summary"
	version := 2
	errMsg := "generation: model unreachable"
	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	row := models.GenerationJob{
		ID:               surrealmodels.RecordID{Table: "generation_job", ID: "abc12345"},
		ArtifactType:     "meeting_summary",
		RequestText:      "standup notes",
		Status:           "completed",
		ResultArtifactID: &artifactID,
		ResultVersion:    &version,
		CreatedAt:        created,
		UpdatedAt:        created.Add(time.Second),
	}

	job, err := jobFromMirror(row)
	if err != nil {
		t.Fatalf("jobFromMirror() error: %v", err)
	}
	if job.ID != "abc12345" || job.Status != JobStatusCompleted {
		t.Errorf("converted job = %+v, want abc12345 completed", job)
	}
	if job.ResultArtifactID != "meeting_summary" || job.ResultVersion != 2 {
		t.Errorf("result pointer = %s v%d, want meeting_summary v2", job.ResultArtifactID, job.ResultVersion)
	}

	row.Status = "failed"
	row.ResultArtifactID = nil
	row.ResultVersion = nil
	row.Error = &errMsg
	job, err = jobFromMirror(row)
	if err != nil {
		t.Fatalf("jobFromMirror() error: %v", err)
	}
	if job.Status != JobStatusFailed || job.Error != errMsg {
		t.Errorf("converted failed job = %+v, want recorded error", job)
	}

	row.ID = surrealmodels.RecordID{Table: "generation_job", ID: 42}
	if _, err := jobFromMirror(row); err == nil {
		t.Error("jobFromMirror() accepted a non-string record ID")
	}
}
