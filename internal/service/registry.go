package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/genvault-go/internal/db"
	"github.com/raphaelgruber/genvault-go/internal/models"
)

// JobStatus represents the state of a generation job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one asynchronous generation request. The registry owns the
// job for its entire lifetime; callers outside the package only ever see
// snapshots.
type Job struct {
	ID           string
	ArtifactType string
	RequestText  string
	Options      map[string]any
	Status       JobStatus

	// Terminal fields: result on completed, error on failed.
	ResultArtifactID string
	ResultVersion    int
	Error            string

	CreatedAt time.Time
	UpdatedAt time.Time

	mu sync.RWMutex
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:               j.ID,
		ArtifactType:     j.ArtifactType,
		RequestText:      j.RequestText,
		Options:          j.Options,
		Status:           j.Status,
		ResultArtifactID: j.ResultArtifactID,
		ResultVersion:    j.ResultVersion,
		Error:            j.Error,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// Registry tracks in-flight and completed generation jobs. The in-memory map
// is the authority for polling; when a database client is configured, job
// state is additionally mirrored to SurrealDB, and mirror failures after
// creation are logged rather than surfaced.
type Registry struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	db     *db.Client
	logger *slog.Logger
}

// NewRegistry creates a job registry. dbClient may be nil to disable the
// durable mirror.
func NewRegistry(dbClient *db.Client, logger *slog.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*Job),
		db:     dbClient,
		logger: logger,
	}
}

// Create allocates a fresh job in the queued state and returns immediately.
func (r *Registry) Create(ctx context.Context, artifactType, requestText string, options map[string]any) (Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:           uuid.New().String()[:8], // Short ID for convenience
		ArtifactType: artifactType,
		RequestText:  requestText,
		Options:      options,
		Status:       JobStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	if r.db != nil {
		if err := r.db.CreateGenerationJob(ctx, job.ID, artifactType, requestText, options); err != nil {
			r.logger.Warn("failed to persist job creation", "job_id", job.ID, "error", err)
		}
	}

	r.logger.Info("job created", "job_id", job.ID, "artifact_type", artifactType)
	return job.Snapshot(), nil
}

// Get retrieves a snapshot of a job by ID. When the in-memory map misses and
// a mirror is configured, the persisted row is returned instead, which keeps
// jobs from before a restart addressable.
func (r *Registry) Get(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if ok {
		return job.Snapshot(), nil
	}

	if r.db != nil {
		row, err := r.db.GetGenerationJob(ctx, id)
		if err == nil {
			return jobFromMirror(*row)
		}
		if !errors.Is(err, db.ErrNotFound) {
			r.logger.Warn("mirror lookup failed", "job_id", id, "error", err)
		}
	}
	return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// mirrorListLimit caps how many persisted rows List folds in.
const mirrorListLimit = 100

// List returns snapshots of all jobs, most recent first. Mirror rows not
// present in memory (jobs from before a restart) are folded in when a
// database is configured.
func (r *Registry) List(ctx context.Context) []Job {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.RUnlock()

	snapshots := make([]Job, 0, len(jobs))
	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		snap := job.Snapshot()
		snapshots = append(snapshots, snap)
		seen[snap.ID] = true
	}

	if r.db != nil {
		rows, err := r.db.ListGenerationJobs(ctx, mirrorListLimit)
		if err != nil {
			r.logger.Warn("mirror list failed", "error", err)
		}
		for _, row := range rows {
			snap, err := jobFromMirror(row)
			if err != nil {
				r.logger.Warn("skipping malformed mirror row", "error", err)
				continue
			}
			if !seen[snap.ID] {
				snapshots = append(snapshots, snap)
			}
		}
	}

	slices.SortFunc(snapshots, func(a, b Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return snapshots
}

// jobFromMirror converts a persisted row into a registry snapshot.
func jobFromMirror(row models.GenerationJob) (Job, error) {
	id, err := models.RecordIDString(row.ID)
	if err != nil {
		return Job{}, fmt.Errorf("mirror row: %w", err)
	}
	job := Job{
		ID:           id,
		ArtifactType: row.ArtifactType,
		RequestText:  row.RequestText,
		Options:      row.Options,
		Status:       JobStatus(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.ResultArtifactID != nil {
		job.ResultArtifactID = *row.ResultArtifactID
	}
	if row.ResultVersion != nil {
		job.ResultVersion = *row.ResultVersion
	}
	if row.Error != nil {
		job.Error = *row.Error
	}
	return job, nil
}

// MarkRunning transitions a queued job to running.
func (r *Registry) MarkRunning(ctx context.Context, id string) error {
	if err := r.transition(id, JobStatusQueued, JobStatusRunning, func(*Job) {}); err != nil {
		return err
	}
	if r.db != nil {
		if err := r.db.UpdateGenerationJobStatus(ctx, id, string(JobStatusRunning)); err != nil {
			r.logger.Warn("failed to persist job running", "job_id", id, "error", err)
		}
	}
	return nil
}

// MarkCompleted transitions a running job to completed with its result.
func (r *Registry) MarkCompleted(ctx context.Context, id, artifactID string, version int) error {
	err := r.transition(id, JobStatusRunning, JobStatusCompleted, func(j *Job) {
		j.ResultArtifactID = artifactID
		j.ResultVersion = version
	})
	if err != nil {
		return err
	}
	if r.db != nil {
		if err := r.db.CompleteGenerationJob(ctx, id, artifactID, version); err != nil {
			r.logger.Warn("failed to persist job completion", "job_id", id, "error", err)
		}
	}
	r.logger.Info("job completed", "job_id", id, "artifact_id", artifactID, "version", version)
	return nil
}

// MarkFailed transitions a running job to failed with its error.
func (r *Registry) MarkFailed(ctx context.Context, id string, cause error) error {
	err := r.transition(id, JobStatusRunning, JobStatusFailed, func(j *Job) {
		j.Error = cause.Error()
	})
	if err != nil {
		return err
	}
	if r.db != nil {
		if dbErr := r.db.FailGenerationJob(ctx, id, cause.Error()); dbErr != nil {
			r.logger.Warn("failed to persist job failure", "job_id", id, "error", dbErr)
		}
	}
	r.logger.Error("job failed", "job_id", id, "error", cause)
	return nil
}

// transition applies a state change after validating the current state
// permits it. Transitions are monotonic: terminal jobs are frozen.
func (r *Registry) transition(id string, from, to JobStatus, apply func(*Job)) error {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	if job.Status != from {
		err := fmt.Errorf("%w: %s -> %s (job %s is %s)", ErrInvalidTransition, from, to, id, job.Status)
		r.logger.Error("rejected job transition", "job_id", id, "from", job.Status, "to", to)
		return err
	}

	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	apply(job)
	return nil
}
