package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the limner home directory.
	DefaultDirName = ".limner"

	// BooksDirName is the subdirectory holding parsed book data.
	BooksDirName = "books"

	// JobsDirName is the subdirectory holding batch job progress records.
	JobsDirName = "jobs"

	// CallsDirName is the subdirectory holding backend call logs.
	CallsDirName = "calls"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// BookFileName is the parsed book document inside a book directory.
	BookFileName = "book.json"

	// CacheFileName is the illustration cache record inside a book directory.
	CacheFileName = "generated_images.json"

	// ImagesDirName is the generated image directory inside a book directory.
	ImagesDirName = "images"
)

// Dir represents the limner home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.limner).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// BooksPath returns the path to the books directory.
func (d *Dir) BooksPath() string {
	return filepath.Join(d.path, BooksDirName)
}

// BookDir returns the directory holding one parsed book.
func (d *Dir) BookDir(bookID string) string {
	return filepath.Join(d.BooksPath(), filepath.Base(bookID))
}

// BookFile returns the path to a book's parsed document.
func (d *Dir) BookFile(bookID string) string {
	return filepath.Join(d.BookDir(bookID), BookFileName)
}

// CacheFile returns the path to a book's illustration cache record.
func (d *Dir) CacheFile(bookID string) string {
	return filepath.Join(d.BookDir(bookID), CacheFileName)
}

// ImagesDir returns the directory for a book's generated images.
func (d *Dir) ImagesDir(bookID string) string {
	return filepath.Join(d.BookDir(bookID), ImagesDirName)
}

// ImagePath resolves a book-relative image reference (e.g. "images/x.png")
// to an absolute path inside the book directory.
func (d *Dir) ImagePath(bookID, relPath string) string {
	return filepath.Join(d.BookDir(bookID), filepath.FromSlash(relPath))
}

// JobsPath returns the directory holding batch job records.
func (d *Dir) JobsPath() string {
	return filepath.Join(d.path, JobsDirName)
}

// JobFile returns the path to a single batch job record.
func (d *Dir) JobFile(jobID string) string {
	return filepath.Join(d.JobsPath(), filepath.Base(jobID)+".json")
}

// CallLogPath returns the backend call log for a book.
func (d *Dir) CallLogPath(bookID string) string {
	return filepath.Join(d.path, CallsDirName, filepath.Base(bookID)+".jsonl")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.BooksPath(), d.JobsPath(), filepath.Join(d.path, CallsDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureImagesDir creates the generated image directory for a book.
func (d *Dir) EnsureImagesDir(bookID string) error {
	return os.MkdirAll(d.ImagesDir(bookID), 0o755)
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
