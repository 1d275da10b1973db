// Package db provides integration tests for SurrealDB job row operations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func wipeJobs(t *testing.T) {
	t.Helper()
	if err := testDB.WipeData(context.Background()); err != nil {
		t.Fatalf("WipeData() error: %v", err)
	}
}

func TestGenerationJobLifecycle(t *testing.T) {
	wipeJobs(t)
	ctx := context.Background()

	err := testDB.CreateGenerationJob(ctx, "job1", "meeting_summary", "standup notes", map[string]any{"tone": "brief"})
	if err != nil {
		t.Fatalf("CreateGenerationJob() error: %v", err)
	}

	job, err := testDB.GetGenerationJob(ctx, "job1")
	if err != nil {
		t.Fatalf("GetGenerationJob() error: %v", err)
	}
	if job.Status != "queued" || job.ArtifactType != "meeting_summary" {
		t.Errorf("job = status %q type %q, want queued meeting_summary", job.Status, job.ArtifactType)
	}

	if err := testDB.UpdateGenerationJobStatus(ctx, "job1", "running"); err != nil {
		t.Fatalf("UpdateGenerationJobStatus() error: %v", err)
	}
	if err := testDB.CompleteGenerationJob(ctx, "job1", "meeting_summary", 3); err != nil {
		t.Fatalf("CompleteGenerationJob() error: %v", err)
	}

	job, err = testDB.GetGenerationJob(ctx, "job1")
	if err != nil {
		t.Fatalf("GetGenerationJob() after complete error: %v", err)
	}
	if job.Status != "completed" {
		t.Errorf("status = %q, want completed", job.Status)
	}
	if job.ResultArtifactID == nil || *job.ResultArtifactID != "meeting_summary" {
		t.Errorf("result_artifact_id = %v, want meeting_summary", job.ResultArtifactID)
	}
	if job.ResultVersion == nil || *job.ResultVersion != 3 {
		t.Errorf("result_version = %v, want 3", job.ResultVersion)
	}
}

func TestFailGenerationJobRecordsError(t *testing.T) {
	wipeJobs(t)
	ctx := context.Background()

	if err := testDB.CreateGenerationJob(ctx, "job2", "flow_diagram", "notes", nil); err != nil {
		t.Fatalf("CreateGenerationJob() error: %v", err)
	}
	if err := testDB.UpdateGenerationJobStatus(ctx, "job2", "running"); err != nil {
		t.Fatalf("UpdateGenerationJobStatus() error: %v", err)
	}
	if err := testDB.FailGenerationJob(ctx, "job2", "generation: model unreachable"); err != nil {
		t.Fatalf("FailGenerationJob() error: %v", err)
	}

	job, err := testDB.GetGenerationJob(ctx, "job2")
	if err != nil {
		t.Fatalf("GetGenerationJob() error: %v", err)
	}
	if job.Status != "failed" {
		t.Errorf("status = %q, want failed", job.Status)
	}
	if job.Error == nil || *job.Error != "generation: model unreachable" {
		t.Errorf("error = %v, want the recorded failure", job.Error)
	}
}

func TestGetGenerationJobNotFound(t *testing.T) {
	wipeJobs(t)

	_, err := testDB.GetGenerationJob(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGenerationJob(missing) error = %v, want ErrNotFound", err)
	}
}

func TestGetIncompleteJobs(t *testing.T) {
	wipeJobs(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		if err := testDB.CreateGenerationJob(ctx, id, "meeting_summary", "notes", nil); err != nil {
			t.Fatalf("CreateGenerationJob(%s) error: %v", id, err)
		}
	}
	if err := testDB.UpdateGenerationJobStatus(ctx, "a2", "running"); err != nil {
		t.Fatalf("UpdateGenerationJobStatus() error: %v", err)
	}
	if err := testDB.CompleteGenerationJob(ctx, "a3", "meeting_summary", 1); err != nil {
		t.Fatalf("CompleteGenerationJob() error: %v", err)
	}

	incomplete, err := testDB.GetIncompleteJobs(ctx)
	if err != nil {
		t.Fatalf("GetIncompleteJobs() error: %v", err)
	}
	if len(incomplete) != 2 {
		t.Fatalf("got %d incomplete jobs, want 2", len(incomplete))
	}
	ids := make(map[string]bool)
	for _, j := range incomplete {
		id, err := models.RecordIDString(j.ID)
		if err != nil {
			t.Fatalf("RecordIDString() error: %v", err)
		}
		ids[id] = true
	}
	if !ids["a1"] || !ids["a2"] {
		t.Errorf("incomplete job IDs = %v, want a1 and a2", ids)
	}
}

func TestFailInterruptedJobsMarksOnlyNonTerminalRows(t *testing.T) {
	wipeJobs(t)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "c3"} {
		if err := testDB.CreateGenerationJob(ctx, id, "meeting_summary", "notes", nil); err != nil {
			t.Fatalf("CreateGenerationJob(%s) error: %v", id, err)
		}
	}
	if err := testDB.UpdateGenerationJobStatus(ctx, "c2", "running"); err != nil {
		t.Fatalf("UpdateGenerationJobStatus() error: %v", err)
	}
	if err := testDB.CompleteGenerationJob(ctx, "c3", "meeting_summary", 1); err != nil {
		t.Fatalf("CompleteGenerationJob() error: %v", err)
	}

	failed, err := testDB.FailInterruptedJobs(ctx, "interrupted by server restart")
	if err != nil {
		t.Fatalf("FailInterruptedJobs() error: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("failed %d jobs, want 2: %v", len(failed), failed)
	}

	for _, id := range failed {
		job, err := testDB.GetGenerationJob(ctx, id)
		if err != nil {
			t.Fatalf("GetGenerationJob(%s) error: %v", id, err)
		}
		if job.Status != "failed" {
			t.Errorf("job %s status = %q, want failed", id, job.Status)
		}
		if job.Error == nil || *job.Error != "interrupted by server restart" {
			t.Errorf("job %s error = %v, want the restart reason", id, job.Error)
		}
	}

	completed, err := testDB.GetGenerationJob(ctx, "c3")
	if err != nil {
		t.Fatalf("GetGenerationJob(c3) error: %v", err)
	}
	if completed.Status != "completed" {
		t.Errorf("completed job status = %q, must not be touched", completed.Status)
	}

	// Second run finds nothing left to fail.
	failed, err = testDB.FailInterruptedJobs(ctx, "interrupted by server restart")
	if err != nil {
		t.Fatalf("FailInterruptedJobs() second run error: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("second run failed %d jobs, want 0", len(failed))
	}
}

func TestListGenerationJobsMostRecentFirst(t *testing.T) {
	wipeJobs(t)
	ctx := context.Background()

	for _, id := range []string{"b1", "b2"} {
		if err := testDB.CreateGenerationJob(ctx, id, "decision_log", "notes", nil); err != nil {
			t.Fatalf("CreateGenerationJob(%s) error: %v", id, err)
		}
		time.Sleep(10 * time.Millisecond) // distinct created_at
	}

	jobs, err := testDB.ListGenerationJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListGenerationJobs() error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	first, err := models.RecordIDString(jobs[0].ID)
	if err != nil {
		t.Fatalf("RecordIDString() error: %v", err)
	}
	if first != "b2" {
		t.Errorf("first listed job = %s, want b2 (most recent)", first)
	}
}
