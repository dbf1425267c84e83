// Package pipeline wires the per-chapter illustration stages into a
// service surface and drives batch runs over it. The stages are scene
// analysis, image generation, anchor resolution, injection, and caching.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/seanpile/limner/internal/anchor"
	"github.com/seanpile/limner/internal/backend"
	"github.com/seanpile/limner/internal/batch"
	"github.com/seanpile/limner/internal/cache"
	"github.com/seanpile/limner/internal/config"
	"github.com/seanpile/limner/internal/home"
	"github.com/seanpile/limner/internal/images"
	"github.com/seanpile/limner/internal/inject"
	"github.com/seanpile/limner/internal/scenes"
)

// ContentProvider supplies parsed chapter content. book.Book implements it.
type ContentProvider interface {
	BookTitle() string
	ChapterCount() int
	ChapterTitle(i int) (string, error)
	ChapterText(i int) (string, error)
	ChapterMarkup(i int) (string, error)
	ChapterWordCount(i int) (int, error)
}

// Illustration is one generated image placed in a chapter.
type Illustration struct {
	ChapterIndex   int    `json:"chapter_index"`
	SceneIndex     int    `json:"scene_index"`
	ImagePath      string `json:"image_path"`
	ParagraphIndex int    `json:"paragraph_index"`
}

// Options tune a single generation request. Zero values fall back to
// configuration defaults.
type Options struct {
	// SceneCount is the number of scenes to analyze and illustrate.
	SceneCount int

	// Style is a free-text style modifier, e.g. "watercolor".
	Style string

	// ImagesPerChapter overrides SceneCount when set. Both are clamped
	// to [1, 10].
	ImagesPerChapter int
}

const maxScenesPerChapter = 10

// sceneCount resolves the effective scene count for a request.
func (o Options) sceneCount(fallback int) int {
	n := o.SceneCount
	if o.ImagesPerChapter > 0 {
		n = o.ImagesPerChapter
	}
	if n <= 0 {
		n = fallback
	}
	if n <= 0 {
		n = 3
	}
	if n > maxScenesPerChapter {
		n = maxScenesPerChapter
	}
	return n
}

// style resolves the effective style modifier.
func (o Options) style(fallback string) string {
	if o.Style != "" {
		return o.Style
	}
	return fallback
}

// Service is the illustration pipeline for one book.
type Service struct {
	bookID   string
	provider ContentProvider

	analyzer *scenes.Analyzer
	synth    *images.Synthesizer
	resolver anchor.Resolver
	store    *cache.Store
	jobs     *batch.Store
	orch     *batch.Orchestrator

	home       *home.Dir
	cfg        *config.Config
	maxRetries int
	logger     *slog.Logger

	running sync.WaitGroup
}

// New assembles a Service from its collaborators.
func New(cfg *config.Config, h *home.Dir, bookID string, provider ContentProvider, text backend.TextGenerator, image backend.ImageGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	jobs := batch.NewStore(h.JobsPath())
	return &Service{
		bookID:   bookID,
		provider: provider,
		analyzer: scenes.NewAnalyzer(text, cfg.Illustrations.MaxChapterChars, logger),
		synth:    images.NewSynthesizer(image, cfg.Illustrations.MinImageBytes, cfg.Illustrations.MaxPromptChars, logger),
		resolver: anchor.Resolver{Threshold: cfg.Illustrations.AnchorThreshold},
		store:    cache.NewStore(h.BookDir(bookID), logger),
		jobs:     jobs,
		orch: batch.NewOrchestrator(jobs, cfg.Batch.Concurrency,
			cfg.Batch.MinChapterWords, logger),
		home:       h,
		cfg:        cfg,
		maxRetries: cfg.Backend.MaxRetries,
		logger:     logger,
	}
}

// GenerateChapter runs the full pipeline for one chapter. If the chapter
// already has a valid cached illustration set, it is returned without
// any backend calls. A stage failure aborts the whole chapter: nothing
// is cached, so a later retry starts clean.
func (s *Service) GenerateChapter(ctx context.Context, chapterIndex int, opts Options) ([]Illustration, error) {
	if chapterIndex < 0 || chapterIndex >= s.provider.ChapterCount() {
		return nil, fmt.Errorf("chapter %d out of range (book has %d chapters)", chapterIndex, s.provider.ChapterCount())
	}

	markup, err := s.provider.ChapterMarkup(chapterIndex)
	if err != nil {
		return nil, err
	}

	if rec, ok, err := s.store.Get(chapterIndex); err == nil && ok {
		s.logger.Debug("chapter already illustrated",
			"book_id", s.bookID,
			"chapter", chapterIndex,
			"images", len(rec.Images),
		)
		return s.fromRecord(chapterIndex, rec, markup), nil
	}

	text, err := s.provider.ChapterText(chapterIndex)
	if err != nil {
		return nil, err
	}
	title, err := s.provider.ChapterTitle(chapterIndex)
	if err != nil {
		return nil, err
	}

	count := opts.sceneCount(s.cfg.Illustrations.SceneCount)
	style := opts.style(s.cfg.Illustrations.Style)

	start := time.Now()
	s.logger.Info("illustrating chapter",
		"book_id", s.bookID,
		"chapter", chapterIndex,
		"scenes", count,
	)

	sc, err := s.analyzer.Analyze(withSceneMeta(ctx, chapterIndex, 0), text, count)
	if err != nil {
		return nil, batch.NewStageError("scenes", err)
	}

	paragraphs := inject.Paragraphs(markup)

	var (
		out       []Illustration
		relPaths  []string
		locations []int
	)
	for i, scene := range sc {
		data, err := s.generateImage(withSceneMeta(ctx, chapterIndex, i), scene, style)
		if err != nil {
			return nil, batch.NewStageError("image", err)
		}

		relPath := images.FileName(chapterIndex, i+1, title)
		if err := s.saveImage(relPath, data); err != nil {
			return nil, batch.NewStageError("save", err)
		}

		out = append(out, Illustration{
			ChapterIndex:   chapterIndex,
			SceneIndex:     i,
			ImagePath:      relPath,
			ParagraphIndex: s.resolver.Resolve(scene.AnchorSentence, scene.LocationPercent, paragraphs),
		})
		relPaths = append(relPaths, relPath)
		locations = append(locations, scene.LocationPercent)
	}

	if err := s.store.Put(chapterIndex, relPaths, locations); err != nil {
		return nil, batch.NewStageError("save", err)
	}

	s.logger.Info("chapter illustrated",
		"book_id", s.bookID,
		"chapter", chapterIndex,
		"images", len(out),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out, nil
}

// generateImage produces one scene image, retrying transient backend
// failures up to the configured attempt budget.
func (s *Service) generateImage(ctx context.Context, scene scenes.Scene, style string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			var err error
			data, err = s.synth.Generate(ctx, scene, s.provider.BookTitle(), style)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxRetries+1)),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)
	return data, err
}

func (s *Service) saveImage(relPath string, data []byte) error {
	if err := s.home.EnsureImagesDir(s.bookID); err != nil {
		return err
	}
	full := s.home.ImagePath(s.bookID, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// fromRecord reconstructs the Illustration list for a cached chapter.
// The record stores locations, not anchors, so placement is positional.
func (s *Service) fromRecord(chapterIndex int, rec *cache.Record, markup string) []Illustration {
	paragraphs := inject.Paragraphs(markup)
	locations := rec.SceneLocations
	if len(locations) != len(rec.Images) {
		locations = defaultLocations(len(rec.Images))
	}

	out := make([]Illustration, len(rec.Images))
	for i, img := range rec.Images {
		out[i] = Illustration{
			ChapterIndex:   chapterIndex,
			SceneIndex:     i,
			ImagePath:      img,
			ParagraphIndex: s.resolver.Resolve("", locations[i], paragraphs),
		}
	}
	return out
}

// defaultLocations spreads n images evenly through a chapter, matching
// the historical {25, 50, 75} spacing for three images.
func defaultLocations(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = (i + 1) * 100 / (n + 1)
	}
	return out
}

// ChapterCount returns the number of chapters in the book.
func (s *Service) ChapterCount() int {
	return s.provider.ChapterCount()
}

// Cached returns the stored illustration record for a chapter, if any.
func (s *Service) Cached(chapterIndex int) (*cache.Record, bool, error) {
	return s.store.Get(chapterIndex)
}

// Invalidate drops a chapter's cached illustrations so the next
// generation starts fresh. With removeFiles, the image files go too.
func (s *Service) Invalidate(chapterIndex int, removeFiles bool) error {
	return s.store.Invalidate(chapterIndex, removeFiles)
}

// InjectChapter returns a chapter's markup with any cached images
// injected at their stored locations. Chapters without cached images
// come back unchanged.
func (s *Service) InjectChapter(chapterIndex int) (string, error) {
	markup, err := s.provider.ChapterMarkup(chapterIndex)
	if err != nil {
		return "", err
	}

	rec, ok, err := s.store.Get(chapterIndex)
	if err != nil || !ok {
		return markup, err
	}

	ills := s.fromRecord(chapterIndex, rec, markup)
	placements := make([]inject.Placement, len(ills))
	for i, ill := range ills {
		placements[i] = inject.Placement{
			ParagraphIndex: ill.ParagraphIndex,
			SceneIndex:     ill.SceneIndex,
			ImagePath:      ill.ImagePath,
		}
	}
	return inject.Inject(markup, placements), nil
}

func withSceneMeta(ctx context.Context, chapterIndex, sceneIndex int) context.Context {
	m := backend.MetaFrom(ctx)
	m.ChapterIndex = chapterIndex
	m.SceneIndex = sceneIndex
	return backend.WithMeta(ctx, m)
}
