package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/models"
)

// Store persists one JSON history document per artifact ID under a data
// directory. Versions within a history are contiguous 1..N and exactly one
// (the highest) is current. Histories for different artifacts are independent;
// a per-artifact mutex serializes read-modify-write cycles, and documents are
// replaced atomically (temp file + rename) so readers never observe a partial
// flip of the current marker.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	latest map[string]int         // highest version per artifact, rebuilt at startup
	locks  map[string]*sync.Mutex // per-artifact serialization
}

// Open initializes a store rooted at dir, creating it if necessary, and
// rebuilds the highest-version cache by scanning all persisted histories.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrStoreUnavailable, err)
	}

	s := &Store{
		dir:    dir,
		logger: logger,
		latest: make(map[string]int),
		locks:  make(map[string]*sync.Mutex),
	}

	ids, err := s.scanArtifactIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		history, err := s.loadHistory(id)
		if err != nil {
			return nil, fmt.Errorf("rebuild cache for %q: %w", id, err)
		}
		max := 0
		for _, v := range history.Versions {
			if v.Version > max {
				max = v.Version
			}
		}
		s.latest[id] = max
	}

	logger.Info("version store opened", "dir", dir, "artifacts", len(ids))
	return s, nil
}

// Append writes a new version for artifactID numbered one past the current
// highest (1 if none exist), marks it current and clears the previous current
// marker. Both updates land in a single atomic file replace.
func (s *Store) Append(artifactID, content string, metadata map[string]any) (models.ArtifactVersion, error) {
	if err := validateArtifactID(artifactID); err != nil {
		return models.ArtifactVersion{}, err
	}

	lock := s.lockFor(artifactID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.loadHistory(artifactID)
	if err != nil && !isNotFound(err) {
		return models.ArtifactVersion{}, err
	}
	if history == nil {
		history = &models.ArtifactHistory{ArtifactID: artifactID}
	}

	next := s.LatestVersion(artifactID) + 1
	max := 0
	for i := range history.Versions {
		history.Versions[i].IsCurrent = false
		if history.Versions[i].Version > max {
			max = history.Versions[i].Version
		}
	}
	// The persisted history is the durable truth; a stale cache (another
	// process wrote the same data dir) heals here instead of renumbering.
	if next != max+1 {
		s.logger.Warn("version cache out of sync with history",
			"artifact_id", artifactID, "cached", next-1, "persisted", max)
		next = max + 1
	}

	version := models.ArtifactVersion{
		ArtifactID: artifactID,
		Version:    next,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
		IsCurrent:  true,
		Metadata:   metadata,
	}
	history.Versions = append(history.Versions, version)

	if err := s.writeHistory(history); err != nil {
		return models.ArtifactVersion{}, err
	}

	s.mu.Lock()
	s.latest[artifactID] = next
	s.mu.Unlock()

	s.logger.Info("version appended", "artifact_id", artifactID, "version", next)
	return version, nil
}

// GetCurrent returns the current (highest) version for artifactID.
func (s *Store) GetCurrent(artifactID string) (models.ArtifactVersion, error) {
	history, err := s.loadHistory(artifactID)
	if err != nil {
		return models.ArtifactVersion{}, err
	}
	current := history.Current()
	if current == nil {
		return models.ArtifactVersion{}, fmt.Errorf("%w: %s has no versions", ErrNotFound, artifactID)
	}
	return *current, nil
}

// GetVersion returns a specific version for artifactID.
func (s *Store) GetVersion(artifactID string, version int) (models.ArtifactVersion, error) {
	history, err := s.loadHistory(artifactID)
	if err != nil {
		return models.ArtifactVersion{}, err
	}
	for _, v := range history.Versions {
		if v.Version == version {
			return v, nil
		}
	}
	return models.ArtifactVersion{}, fmt.Errorf("%w: %s version %d", ErrNotFound, artifactID, version)
}

// ListVersions returns all versions for artifactID ascending by version.
func (s *Store) ListVersions(artifactID string) ([]models.ArtifactVersion, error) {
	history, err := s.loadHistory(artifactID)
	if err != nil {
		return nil, err
	}
	versions := make([]models.ArtifactVersion, len(history.Versions))
	copy(versions, history.Versions)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// ListArtifactIDs returns all stable artifact IDs in the store, sorted.
// Legacy timestamp-suffixed files awaiting migration are not included.
func (s *Store) ListArtifactIDs() ([]string, error) {
	return s.scanArtifactIDs()
}

// LatestVersion returns the cached highest version number for artifactID,
// or 0 if the artifact has no versions.
func (s *Store) LatestVersion(artifactID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[artifactID]
}

func (s *Store) lockFor(artifactID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[artifactID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[artifactID] = lock
	}
	return lock
}

func (s *Store) path(artifactID string) string {
	return filepath.Join(s.dir, artifactID+".json")
}

func (s *Store) loadHistory(artifactID string) (*models.ArtifactHistory, error) {
	if err := validateArtifactID(artifactID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(artifactID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, artifactID)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreUnavailable, artifactID, err)
	}
	var history models.ArtifactHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStoreUnavailable, artifactID, err)
	}
	return &history, nil
}

// writeHistory replaces an artifact's history document atomically.
func (s *Store) writeHistory(history *models.ArtifactHistory) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStoreUnavailable, history.ArtifactID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".genvault-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrStoreUnavailable, history.ArtifactID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrStoreUnavailable, history.ArtifactID, err)
	}
	if err := os.Rename(tmpName, s.path(history.ArtifactID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", ErrStoreUnavailable, history.ArtifactID, err)
	}
	return nil
}

// scanArtifactIDs lists stable history files in the data directory.
func (s *Store) scanArtifactIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: scan data dir: %v", ErrStoreUnavailable, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if legacyFilePattern.MatchString(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func validateArtifactID(artifactID string) error {
	if artifactID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidArtifactID)
	}
	if strings.ContainsAny(artifactID, "/\\") || artifactID == "." || artifactID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidArtifactID, artifactID)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
