// Package book reads parsed book documents from the limner home
// directory. A book directory holds a book.json produced by the
// ingestion tooling; this package never parses EPUB or PDF itself.
package book

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Metadata holds the bibliographic fields of a parsed book.
type Metadata struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`
}

// Chapter is one spine entry of a parsed book. Content is the rendered
// HTML markup, Text the extracted plain text.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Text    string `json:"text"`
}

// Book is a fully parsed document.
type Book struct {
	Metadata Metadata  `json:"metadata"`
	Chapters []Chapter `json:"chapters"`
}

// Load reads and parses a book.json file.
func Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read book file: %w", err)
	}
	var b Book
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse book file %s: %w", path, err)
	}
	return &b, nil
}

// BookTitle returns the book's title.
func (b *Book) BookTitle() string {
	return b.Metadata.Title
}

// Author returns the authors joined for display.
func (b *Book) Author() string {
	return strings.Join(b.Metadata.Authors, ", ")
}

// ChapterCount returns the number of chapters in the spine.
func (b *Book) ChapterCount() int {
	return len(b.Chapters)
}

func (b *Book) chapter(i int) (*Chapter, error) {
	if i < 0 || i >= len(b.Chapters) {
		return nil, fmt.Errorf("chapter %d out of range (book has %d chapters)", i, len(b.Chapters))
	}
	return &b.Chapters[i], nil
}

// ChapterTitle returns the title of one chapter.
func (b *Book) ChapterTitle(i int) (string, error) {
	ch, err := b.chapter(i)
	if err != nil {
		return "", err
	}
	return ch.Title, nil
}

// ChapterText returns the plain text of one chapter.
func (b *Book) ChapterText(i int) (string, error) {
	ch, err := b.chapter(i)
	if err != nil {
		return "", err
	}
	return ch.Text, nil
}

// ChapterMarkup returns the rendered HTML of one chapter.
func (b *Book) ChapterMarkup(i int) (string, error) {
	ch, err := b.chapter(i)
	if err != nil {
		return "", err
	}
	return ch.Content, nil
}

// ChapterWordCount returns the approximate word count of one chapter's
// plain text.
func (b *Book) ChapterWordCount(i int) (int, error) {
	ch, err := b.chapter(i)
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(ch.Text)), nil
}
