// Package cache persists which chapters have already been illustrated.
// The on-disk record is the sole ground truth for idempotence: a chapter
// is only "done" if its record exists and every referenced image file is
// still present.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Record describes one illustrated chapter.
type Record struct {
	// Images are book-relative image paths, ordered by scene index.
	Images []string `json:"images"`

	// SceneLocations are location percentages, ordered by scene index.
	// May be empty for records upgraded from the legacy format.
	SceneLocations []int `json:"scene_locations,omitempty"`
}

// Store reads and writes a book's illustration records.
// All records for a book live in one JSON file keyed by chapter index;
// writes replace the file atomically so concurrent readers never observe
// a half-written record.
type Store struct {
	mu      sync.Mutex
	bookDir string
	logger  *slog.Logger
}

// NewStore creates a cache store rooted at a book's data directory.
func NewStore(bookDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{bookDir: bookDir, logger: logger}
}

func (s *Store) filePath() string {
	return filepath.Join(s.bookDir, "generated_images.json")
}

// Get returns the record for a chapter, or ok=false if the chapter has
// never been illustrated or its record is no longer trustworthy. A record
// whose image files are missing from disk is treated as absent, forcing
// regeneration.
func (s *Store) Get(chapterIndex int) (*Record, bool, error) {
	s.mu.Lock()
	records, err := s.readAll()
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}

	rec, ok := records[strconv.Itoa(chapterIndex)]
	if !ok {
		return nil, false, nil
	}

	for _, img := range rec.Images {
		full := filepath.Join(s.bookDir, filepath.FromSlash(img))
		if _, err := os.Stat(full); err != nil {
			s.logger.Warn("cached image missing from disk, invalidating record",
				"chapter", chapterIndex,
				"image", img)
			return nil, false, nil
		}
	}
	if len(rec.Images) == 0 {
		return nil, false, nil
	}

	return &rec, true, nil
}

// Put upserts the record for a chapter. The images and locations lists
// must be the same length, both ordered by scene index.
func (s *Store) Put(chapterIndex int, images []string, locations []int) error {
	if len(images) != len(locations) {
		return fmt.Errorf("images/locations length mismatch: %d vs %d", len(images), len(locations))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return err
	}
	records[strconv.Itoa(chapterIndex)] = Record{Images: images, SceneLocations: locations}
	return s.writeAll(records)
}

// Invalidate removes a chapter's record so the next Get reports absent.
// With removeFiles, the referenced image files are deleted as well.
func (s *Store) Invalidate(chapterIndex int, removeFiles bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return err
	}

	key := strconv.Itoa(chapterIndex)
	rec, ok := records[key]
	if !ok {
		return nil
	}

	if removeFiles {
		for _, img := range rec.Images {
			full := filepath.Join(s.bookDir, filepath.FromSlash(img))
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove cached image", "image", img, "error", err)
			}
		}
	}

	delete(records, key)
	return s.writeAll(records)
}

// readAll loads every chapter record, upgrading legacy bare-list values
// (a plain array of image paths) into the structured form. The legacy
// shape never escapes this boundary.
func (s *Store) readAll() (map[string]Record, error) {
	data, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// A corrupt cache file means regenerating, not crashing.
		s.logger.Warn("cache file unreadable, treating as empty", "error", err)
		return map[string]Record{}, nil
	}

	records := make(map[string]Record, len(raw))
	for key, value := range raw {
		var rec Record
		if err := json.Unmarshal(value, &rec); err == nil {
			records[key] = rec
			continue
		}

		var legacy []string
		if err := json.Unmarshal(value, &legacy); err == nil {
			records[key] = Record{Images: legacy}
			continue
		}

		s.logger.Warn("skipping unrecognized cache entry", "chapter", key)
	}
	return records, nil
}

// writeAll replaces the cache file via a temp file and rename, so a
// concurrent reader sees either the old state or the new one, never a
// partial write.
func (s *Store) writeAll(records map[string]Record) error {
	if err := os.MkdirAll(s.bookDir, 0o755); err != nil {
		return fmt.Errorf("failed to create book directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache records: %w", err)
	}

	tmp, err := os.CreateTemp(s.bookDir, ".generated_images-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
