package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/raphaelgruber/genvault-go/internal/models"
)

// legacyFilePattern matches history files from the pre-stable-ID scheme:
// base type plus a fixed-width timestamp suffix, e.g. foo_20230101_000000.
// The suffix is zero-padded, so lexicographic order is chronological order.
var legacyFilePattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})$`)

// MigrationResult summarizes one reconciler run.
type MigrationResult struct {
	GroupsMigrated int      // base types consolidated into stable histories
	FilesConsumed  int      // legacy files folded in and deleted
	GroupsSkipped  []string // base types skipped because a stable history already exists
}

// Reconcile folds legacy timestamp-suffixed history files into stable
// per-artifact histories. Safe to invoke repeatedly: once no legacy files
// remain it is a no-op. A group whose base type already has a stable history
// is skipped untouched: the stable file wins and the conflict is logged, so
// a crash between consolidation and deletion never loses data.
func (s *Store) Reconcile() (MigrationResult, error) {
	var result MigrationResult

	groups, err := s.legacyGroups()
	if err != nil {
		return result, err
	}
	if len(groups) == 0 {
		s.logger.Info("no legacy version files to migrate")
		return result, nil
	}

	bases := make([]string, 0, len(groups))
	for base := range groups {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	for _, base := range bases {
		legacyIDs := groups[base]

		// Stable history present means a prior run already consolidated this
		// group (or the artifact was created after migration). Never overwrite.
		if _, err := os.Stat(s.path(base)); err == nil {
			s.logger.Warn("stable history already exists, skipping legacy group",
				"artifact_id", base, "legacy_files", len(legacyIDs))
			result.GroupsSkipped = append(result.GroupsSkipped, base)
			continue
		}

		if err := s.migrateGroup(base, legacyIDs); err != nil {
			return result, err
		}
		result.GroupsMigrated++
		result.FilesConsumed += len(legacyIDs)
	}

	s.logger.Info("legacy migration complete",
		"groups", result.GroupsMigrated,
		"files", result.FilesConsumed,
		"skipped", len(result.GroupsSkipped))
	return result, nil
}

// migrateGroup consolidates one base type's legacy files, ordered by their
// timestamp suffix, into a single stable history. Persist-then-delete: the
// stable file is written before any legacy source is removed.
func (s *Store) migrateGroup(base string, legacyIDs []string) error {
	sort.Strings(legacyIDs) // fixed-width suffix: lexicographic == chronological

	var merged []models.ArtifactVersion
	for _, legacyID := range legacyIDs {
		history, err := s.loadHistory(legacyID)
		if err != nil {
			return fmt.Errorf("load legacy %s: %w", legacyID, err)
		}
		for _, v := range history.Versions {
			if v.Metadata == nil {
				v.Metadata = make(map[string]any)
			}
			v.Metadata[models.MetaMigratedFrom] = legacyID
			merged = append(merged, v)
		}
	}

	// Trust recorded timestamps over file-name order in case of clock skew
	// at capture time. Stable sort keeps file order for equal timestamps.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	for i := range merged {
		merged[i].ArtifactID = base
		merged[i].Version = i + 1
		merged[i].IsCurrent = i == len(merged)-1
	}

	if err := s.writeHistory(&models.ArtifactHistory{ArtifactID: base, Versions: merged}); err != nil {
		return err
	}

	for _, legacyID := range legacyIDs {
		if err := os.Remove(s.path(legacyID)); err != nil {
			return fmt.Errorf("%w: delete legacy %s: %v", ErrStoreUnavailable, legacyID, err)
		}
	}

	s.mu.Lock()
	s.latest[base] = len(merged)
	s.mu.Unlock()

	s.logger.Info("migrated legacy group",
		"artifact_id", base, "versions", len(merged), "legacy_files", len(legacyIDs))
	return nil
}

// legacyGroups enumerates legacy files grouped by base type.
func (s *Store) legacyGroups() (map[string][]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: scan data dir: %v", ErrStoreUnavailable, err)
	}

	groups := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		m := legacyFilePattern.FindStringSubmatch(id)
		if m == nil {
			continue // already a stable artifact, leave untouched
		}
		groups[m[1]] = append(groups[m[1]], id)
	}
	return groups, nil
}
