// Package leaderboard persists named scores in a single structured text file.
//
// The whole file is read and written as one unit. Writes go to a temporary
// file in the same directory which is then renamed over the target, so a
// reader never observes a half-written leaderboard.
package leaderboard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/verte-zerg/sprint/internal/model"
)

// ErrMalformed is returned when the leaderboard file exists but cannot be
// decoded into valid records.
var ErrMalformed = errors.New("malformed leaderboard")

// Store reads and writes the leaderboard file.
type Store struct {
	path  string
	codec codec
}

// Open returns a Store for path. The file format follows the extension:
// ".json" selects JSON, anything else TOML. The file is not touched until
// the first Load or Save.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("leaderboard path is empty")
	}
	return &Store{path: path, codec: codecFor(path)}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads all records. A missing file yields an empty leaderboard.
func (s *Store) Load() ([]model.ScoreRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.ScoreRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	records, err := s.codec.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	if err := validate(records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return records, nil
}

// Save overwrites the leaderboard with records.
func (s *Store) Save(records []model.ScoreRecord) error {
	if err := validate(records); err != nil {
		return fmt.Errorf("refusing to save leaderboard: %w", err)
	}
	data, err := s.codec.encode(records)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// Upsert sets name's score, replacing any previous one, and returns the
// stored records.
func (s *Store) Upsert(name string, score int) ([]model.ScoreRecord, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	found := false
	for i := range records {
		if records[i].Name == name {
			records[i].Score = score
			found = true
			break
		}
	}
	if !found {
		records = append(records, model.ScoreRecord{Name: name, Score: score})
	}
	if err := s.Save(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Ranked returns a copy of records ordered by score, highest first. Equal
// scores keep their stored order.
func Ranked(records []model.ScoreRecord) []model.ScoreRecord {
	out := make([]model.ScoreRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func validate(records []model.ScoreRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.Name == "" {
			return fmt.Errorf("record %d has an empty name", i)
		}
		if _, ok := seen[rec.Name]; ok {
			return fmt.Errorf("name %q appears more than once", rec.Name)
		}
		seen[rec.Name] = struct{}{}
		if rec.Score < 0 {
			return fmt.Errorf("record %q has a negative score", rec.Name)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create leaderboard dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".leaderboard-*")
	if err != nil {
		return fmt.Errorf("failed to create temp leaderboard: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write leaderboard: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync leaderboard: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close leaderboard: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to chmod leaderboard: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace leaderboard: %w", err)
	}
	return nil
}
