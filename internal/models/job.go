package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// GenerationJob represents a persisted generation job row.
type GenerationJob struct {
	ID               surrealmodels.RecordID `json:"id"`
	ArtifactType     string                 `json:"artifact_type"`
	RequestText      string                 `json:"request_text"`
	Options          map[string]any         `json:"options,omitempty"`
	Status           string                 `json:"status"`
	ResultArtifactID *string                `json:"result_artifact_id,omitempty"`
	ResultVersion    *int                   `json:"result_version,omitempty"`
	Error            *string                `json:"error,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}
