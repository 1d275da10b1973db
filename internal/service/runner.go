package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/generate"
	"github.com/raphaelgruber/genvault-go/internal/hub"
	"github.com/raphaelgruber/genvault-go/internal/metrics"
	"github.com/raphaelgruber/genvault-go/internal/store"
)

// Runner executes generation jobs asynchronously. Submission validates input
// and returns a job ID immediately; execution outcomes are observable only by
// polling the registry or listening on the hub, never as a synchronous error.
type Runner struct {
	registry  *Registry
	store     *store.Store
	generator generate.Generator
	hub       *hub.Hub
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewRunner wires the runner to its collaborators. metrics may be nil.
func NewRunner(registry *Registry, versions *store.Store, generator generate.Generator, events *hub.Hub, collector *metrics.Collector, logger *slog.Logger) *Runner {
	return &Runner{
		registry:  registry,
		store:     versions,
		generator: generator,
		hub:       events,
		metrics:   collector,
		logger:    logger,
	}
}

// Submit validates the request, creates a queued registry entry and schedules
// asynchronous execution. The only errors returned here are validation
// errors; nothing about execution is awaited.
func (r *Runner) Submit(ctx context.Context, artifactType, requestText string, options map[string]any) (string, error) {
	if strings.TrimSpace(requestText) == "" {
		return "", fmt.Errorf("%w: request text is empty", ErrValidation)
	}
	if !r.generator.Supports(artifactType) {
		return "", fmt.Errorf("%w: unknown artifact type %q (supported: %s)",
			ErrValidation, artifactType, strings.Join(r.generator.ArtifactTypes(), ", "))
	}

	job, err := r.registry.Create(ctx, artifactType, requestText, options)
	if err != nil {
		return "", err
	}
	if r.metrics != nil {
		r.metrics.JobSubmitted()
	}
	r.publish(job.ID, hub.Event{Type: hub.EventJobQueued, JobID: job.ID, Status: string(JobStatusQueued)})

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("job goroutine panicked", "job_id", job.ID, "panic", rec)
				r.fail(context.Background(), job.ID, fmt.Errorf("internal panic: %v", rec))
			}
		}()
		r.execute(job)
	}()

	return job.ID, nil
}

// execute runs one job to its terminal state. Hub events for a transition are
// published only after the registry has applied it, so no subscriber ever
// observes a state a subsequent poll cannot confirm.
func (r *Runner) execute(job Job) {
	// Detached from the submitting request: the job outlives its caller.
	ctx := context.Background()

	if err := r.registry.MarkRunning(ctx, job.ID); err != nil {
		r.logger.Error("cannot start job", "job_id", job.ID, "error", err)
		return
	}
	r.publish(job.ID, hub.Event{Type: hub.EventJobRunning, JobID: job.ID, Status: string(JobStatusRunning)})

	start := time.Now()
	content, err := r.generator.Generate(ctx, job.ArtifactType, job.RequestText, job.Options)
	if r.metrics != nil {
		r.metrics.RecordTiming(metrics.OpGenerate, time.Since(start))
	}
	if err != nil {
		r.fail(ctx, job.ID, fmt.Errorf("generation: %w", err))
		return
	}
	if strings.TrimSpace(content) == "" {
		r.fail(ctx, job.ID, fmt.Errorf("generation: no usable content for %s", job.ArtifactType))
		return
	}

	// The artifact type is the stable artifact identity: repeated runs for
	// the same type extend one version history.
	appendStart := time.Now()
	version, err := r.store.Append(job.ArtifactType, content, map[string]any{"job_id": job.ID})
	if r.metrics != nil {
		r.metrics.RecordTiming(metrics.OpStoreAppend, time.Since(appendStart))
	}
	if err != nil {
		r.fail(ctx, job.ID, fmt.Errorf("store unavailable: %w", err))
		return
	}

	if err := r.registry.MarkCompleted(ctx, job.ID, version.ArtifactID, version.Version); err != nil {
		r.logger.Error("cannot complete job", "job_id", job.ID, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.JobCompleted()
	}
	r.publish(job.ID, hub.Event{
		Type:       hub.EventJobCompleted,
		JobID:      job.ID,
		Status:     string(JobStatusCompleted),
		ArtifactID: version.ArtifactID,
		Version:    version.Version,
	})
}

func (r *Runner) fail(ctx context.Context, jobID string, cause error) {
	if err := r.registry.MarkFailed(ctx, jobID, cause); err != nil {
		r.logger.Error("cannot fail job", "job_id", jobID, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.JobFailed()
	}
	r.publish(jobID, hub.Event{
		Type:   hub.EventJobFailed,
		JobID:  jobID,
		Status: string(JobStatusFailed),
		Error:  cause.Error(),
	})
}

func (r *Runner) publish(jobID string, event hub.Event) {
	if r.hub == nil {
		return
	}
	r.hub.Publish(hub.JobChannel(jobID), event)
	r.hub.Publish(hub.BroadcastChannel, event)
}
