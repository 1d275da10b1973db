// Package models defines data structures for the Genvault artifact service.
package models

import "time"

// MetaMigratedFrom is the metadata key recording which legacy history file a
// version was folded in from during migration.
const MetaMigratedFrom = "migrated_from"

// ArtifactVersion is one immutable entry in an artifact's version history.
// Versions are numbered 1..N with no gaps within an artifact ID, and exactly
// one version per artifact carries IsCurrent (the highest).
type ArtifactVersion struct {
	ArtifactID string         `json:"artifact_id"`
	Version    int            `json:"version"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	IsCurrent  bool           `json:"is_current"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ArtifactHistory is the persisted document for a single artifact ID: its
// ordered version sequence. One JSON file per artifact in the data directory.
type ArtifactHistory struct {
	ArtifactID string            `json:"artifact_id"`
	Versions   []ArtifactVersion `json:"versions"`
}

// Current returns the current version of the history, or nil if empty.
func (h *ArtifactHistory) Current() *ArtifactVersion {
	for i := len(h.Versions) - 1; i >= 0; i-- {
		if h.Versions[i].IsCurrent {
			return &h.Versions[i]
		}
	}
	return nil
}
