// Package db provides SurrealDB query functions for generation job rows.
package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/genvault-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CreateGenerationJob inserts a queued job row.
func (c *Client) CreateGenerationJob(ctx context.Context, id, artifactType, requestText string, options map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("generation_job", $id) SET
			artifact_type = $artifact_type,
			request_text = $request_text,
			options = $options,
			status = 'queued',
			created_at = time::now(),
			updated_at = time::now()
	`, map[string]any{
		"id":            id,
		"artifact_type": artifactType,
		"request_text":  requestText,
		"options":       options,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", wrapQueryError(err))
	}
	return nil
}

// UpdateGenerationJobStatus updates a job row's status.
func (c *Client) UpdateGenerationJobStatus(ctx context.Context, id, status string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("generation_job", $id) SET
			status = $status,
			updated_at = time::now()
	`, map[string]any{"id": id, "status": status})
	if err != nil {
		return fmt.Errorf("update job status: %w", wrapQueryError(err))
	}
	return nil
}

// CompleteGenerationJob marks a job row completed with its result pointer.
func (c *Client) CompleteGenerationJob(ctx context.Context, id, artifactID string, version int) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("generation_job", $id) SET
			status = 'completed',
			result_artifact_id = $artifact_id,
			result_version = $version,
			updated_at = time::now()
	`, map[string]any{"id": id, "artifact_id": artifactID, "version": version})
	if err != nil {
		return fmt.Errorf("complete job: %w", wrapQueryError(err))
	}
	return nil
}

// FailGenerationJob marks a job row failed with its error string.
func (c *Client) FailGenerationJob(ctx context.Context, id, errMsg string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("generation_job", $id) SET
			status = 'failed',
			error = $error,
			updated_at = time::now()
	`, map[string]any{"id": id, "error": errMsg})
	if err != nil {
		return fmt.Errorf("fail job: %w", wrapQueryError(err))
	}
	return nil
}

// GetGenerationJob retrieves a job row by ID.
// Returns ErrNotFound if no row exists.
func (c *Client) GetGenerationJob(ctx context.Context, id string) (*models.GenerationJob, error) {
	results, err := surrealdb.Query[[]models.GenerationJob](ctx, c.db, `
		SELECT * FROM type::record("generation_job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &(*results)[0].Result[0], nil
}

// ListGenerationJobs returns job rows, most recent first.
func (c *Client) ListGenerationJobs(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	results, err := surrealdb.Query[[]models.GenerationJob](ctx, c.db, `
		SELECT * FROM generation_job ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.GenerationJob{}, nil
	}
	return (*results)[0].Result, nil
}

// FailInterruptedJobs marks every queued or running row failed with reason
// and returns their IDs. Called at server startup: a job left non-terminal by
// the previous process will never make progress, so the mirror records the
// interruption instead of showing it in-flight forever.
func (c *Client) FailInterruptedJobs(ctx context.Context, reason string) ([]string, error) {
	rows, err := c.GetIncompleteJobs(ctx)
	if err != nil {
		return nil, err
	}

	var failed []string
	for _, row := range rows {
		id, err := models.RecordIDString(row.ID)
		if err != nil {
			return failed, fmt.Errorf("interrupted job row: %w", err)
		}
		if err := c.FailGenerationJob(ctx, id, reason); err != nil {
			return failed, err
		}
		failed = append(failed, id)
	}
	return failed, nil
}

// GetIncompleteJobs returns rows still queued or running, oldest first.
// Used at startup to report jobs interrupted by a crash.
func (c *Client) GetIncompleteJobs(ctx context.Context) ([]models.GenerationJob, error) {
	results, err := surrealdb.Query[[]models.GenerationJob](ctx, c.db, `
		SELECT * FROM generation_job
		WHERE status IN ['queued', 'running']
		ORDER BY created_at ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("get incomplete jobs: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.GenerationJob{}, nil
	}
	return (*results)[0].Result, nil
}
