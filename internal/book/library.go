package book

import (
	"fmt"
	"os"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/seanpile/limner/internal/home"
)

// Info is a library listing entry for one book.
type Info struct {
	ID       string
	Title    string
	Author   string
	Chapters int
}

// Library loads parsed books from the home directory, caching loads so
// repeated chapter operations don't re-read large book files.
type Library struct {
	home  *home.Dir
	cache *gocache.Cache
}

// NewLibrary creates a Library over the given home directory.
func NewLibrary(h *home.Dir) *Library {
	return &Library{
		home:  h,
		cache: gocache.New(10*time.Minute, 30*time.Minute),
	}
}

// Open loads a book by ID, from cache when possible.
func (l *Library) Open(bookID string) (*Book, error) {
	if v, ok := l.cache.Get(bookID); ok {
		return v.(*Book), nil
	}

	b, err := Load(l.home.BookFile(bookID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("book %q not found: %w", bookID, err)
		}
		return nil, err
	}
	l.cache.SetDefault(bookID, b)
	return b, nil
}

// Evict drops a cached book, forcing the next Open to re-read disk.
func (l *Library) Evict(bookID string) {
	l.cache.Delete(bookID)
}

// List scans the books directory and returns an entry for every
// directory containing a readable book.json, sorted by ID. Directories
// without one are skipped silently.
func (l *Library) List() ([]Info, error) {
	entries, err := os.ReadDir(l.home.BooksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := l.Open(e.Name())
		if err != nil {
			continue
		}
		out = append(out, Info{
			ID:       e.Name(),
			Title:    b.BookTitle(),
			Author:   b.Author(),
			Chapters: b.ChapterCount(),
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}
