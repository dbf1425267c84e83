package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seanpile/limner/internal/backend"
	"github.com/seanpile/limner/internal/batch"
	"github.com/seanpile/limner/internal/config"
	"github.com/seanpile/limner/internal/home"
)

// fakeProvider serves a small in-memory book.
type fakeProvider struct {
	title    string
	chapters []fakeChapter
}

type fakeChapter struct {
	title  string
	text   string
	markup string
}

func (f *fakeProvider) BookTitle() string { return f.title }
func (f *fakeProvider) ChapterCount() int { return len(f.chapters) }

func (f *fakeProvider) chapter(i int) (*fakeChapter, error) {
	if i < 0 || i >= len(f.chapters) {
		return nil, fmt.Errorf("chapter %d out of range", i)
	}
	return &f.chapters[i], nil
}

func (f *fakeProvider) ChapterTitle(i int) (string, error) {
	ch, err := f.chapter(i)
	if err != nil {
		return "", err
	}
	return ch.title, nil
}

func (f *fakeProvider) ChapterText(i int) (string, error) {
	ch, err := f.chapter(i)
	if err != nil {
		return "", err
	}
	return ch.text, nil
}

func (f *fakeProvider) ChapterMarkup(i int) (string, error) {
	ch, err := f.chapter(i)
	if err != nil {
		return "", err
	}
	return ch.markup, nil
}

func (f *fakeProvider) ChapterWordCount(i int) (int, error) {
	ch, err := f.chapter(i)
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(ch.text)), nil
}

// fakeText returns a canned scene analysis and counts calls.
type fakeText struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeText) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeText) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeImage returns a valid PNG payload and counts calls. failFor marks
// chapter indexes (via context metadata) that always fail.
type fakeImage struct {
	mu      sync.Mutex
	err     error
	failFor map[int]bool
	calls   int
}

func (f *fakeImage) GenerateImage(ctx context.Context, prompt string) ([]backend.Part, error) {
	idx := backend.MetaFrom(ctx).ChapterIndex
	f.mu.Lock()
	f.calls++
	err := f.err
	fail := f.failFor[idx]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fail {
		return nil, errors.New("deadline exceeded")
	}
	return []backend.Part{
		{Text: "Here is your illustration."},
		{Data: fakePNG(), MIMEType: "image/png"},
	}, nil
}

func (f *fakeImage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fakePNG() []byte {
	data := make([]byte, 2048)
	copy(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	return data
}

const sceneJSON = `{"scenes": [
  {"summary": "A ship departs the harbor at dawn", "anchor_sentence": "The ship left the harbor.", "location_percent": 20},
  {"summary": "A storm batters the deck", "anchor_sentence": "The storm arrived without warning.", "location_percent": 55},
  {"summary": "Calm waters under the stars", "anchor_sentence": null, "location_percent": 90}
]}`

func chapterMarkup() string {
	return `<p>The ship left the harbor.</p><p>Days passed quietly.</p><p>The storm arrived without warning.</p><p>At last, calm waters.</p>`
}

func testService(t *testing.T, text *fakeText, image *fakeImage) (*Service, *home.Dir) {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Backend.MaxRetries = 0
	cfg.Batch.MinChapterWords = 1
	cfg.Batch.Concurrency = 3

	longText := strings.Repeat("The ship sailed on through heavy seas. ", 40)
	provider := &fakeProvider{
		title: "Moby Dick",
		chapters: []fakeChapter{
			{title: "Loomings", text: longText, markup: chapterMarkup()},
			{title: "The Storm", text: longText, markup: chapterMarkup()},
			{title: "Landfall", text: longText, markup: chapterMarkup()},
		},
	}

	return New(cfg, h, "moby-dick", provider, text, image, nil), h
}

func TestGenerateChapter(t *testing.T) {
	text := &fakeText{response: sceneJSON}
	image := &fakeImage{}
	svc, h := testService(t, text, image)

	ills, err := svc.GenerateChapter(context.Background(), 0, Options{})
	if err != nil {
		t.Fatalf("GenerateChapter failed: %v", err)
	}
	if len(ills) != 3 {
		t.Fatalf("expected 3 illustrations, got %d", len(ills))
	}

	// Anchors resolve by containment against the chapter markup.
	if ills[0].ParagraphIndex != 0 {
		t.Errorf("scene 1 paragraph = %d, want 0", ills[0].ParagraphIndex)
	}
	if ills[1].ParagraphIndex != 2 {
		t.Errorf("scene 2 paragraph = %d, want 2", ills[1].ParagraphIndex)
	}

	// Images land on disk under the book directory.
	for _, ill := range ills {
		if !strings.HasPrefix(ill.ImagePath, "images/") {
			t.Errorf("image path %q should be book-relative", ill.ImagePath)
		}
		if _, err := os.Stat(h.ImagePath("moby-dick", ill.ImagePath)); err != nil {
			t.Errorf("image file missing: %v", err)
		}
	}

	// The cache record matches what was generated.
	rec, ok, err := svc.Cached(0)
	if err != nil || !ok {
		t.Fatalf("Cached: ok=%v err=%v", ok, err)
	}
	if len(rec.Images) != 3 || len(rec.SceneLocations) != 3 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.SceneLocations[0] != 20 || rec.SceneLocations[2] != 90 {
		t.Errorf("stored locations = %v", rec.SceneLocations)
	}

	t.Run("out of range", func(t *testing.T) {
		if _, err := svc.GenerateChapter(context.Background(), 99, Options{}); err == nil {
			t.Error("expected error for chapter 99")
		}
	})
}

func TestGenerateChapterIdempotent(t *testing.T) {
	text := &fakeText{response: sceneJSON}
	image := &fakeImage{}
	svc, _ := testService(t, text, image)

	first, err := svc.GenerateChapter(context.Background(), 0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	textCalls, imageCalls := text.callCount(), image.callCount()

	second, err := svc.GenerateChapter(context.Background(), 0, Options{})
	if err != nil {
		t.Fatalf("second GenerateChapter failed: %v", err)
	}

	if text.callCount() != textCalls || image.callCount() != imageCalls {
		t.Errorf("second call hit the backend: text %d->%d, image %d->%d",
			textCalls, text.callCount(), imageCalls, image.callCount())
	}
	if len(second) != len(first) {
		t.Errorf("cached result has %d illustrations, want %d", len(second), len(first))
	}
	for i := range second {
		if second[i].ImagePath != first[i].ImagePath {
			t.Errorf("illustration %d path changed: %q vs %q", i, first[i].ImagePath, second[i].ImagePath)
		}
	}
}

func TestGenerateChapterRegeneratesAfterInvalidate(t *testing.T) {
	text := &fakeText{response: sceneJSON}
	image := &fakeImage{}
	svc, _ := testService(t, text, image)

	if _, err := svc.GenerateChapter(context.Background(), 0, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := svc.Invalidate(0, true); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := svc.Cached(0); ok {
		t.Fatal("record should be gone after invalidation")
	}

	before := image.callCount()
	if _, err := svc.GenerateChapter(context.Background(), 0, Options{}); err != nil {
		t.Fatal(err)
	}
	if image.callCount() == before {
		t.Error("expected fresh backend calls after invalidation")
	}
}

func TestGenerateChapterImageStageFailure(t *testing.T) {
	text := &fakeText{response: sceneJSON}
	image := &fakeImage{err: errors.New("quota exhausted")}
	svc, _ := testService(t, text, image)

	_, err := svc.GenerateChapter(context.Background(), 0, Options{})
	if err == nil {
		t.Fatal("expected stage error")
	}
	var se *batch.StageError
	if !errors.As(err, &se) || se.Stage != "image" {
		t.Errorf("expected image stage error, got %v", err)
	}

	// A failed chapter leaves no partial cache record.
	if _, ok, _ := svc.Cached(0); ok {
		t.Error("failed chapter must not be cached")
	}
}

func TestGenerateChapterSceneParseFallback(t *testing.T) {
	// Garbage analysis output degrades to synthetic scenes; the chapter
	// still gets illustrated.
	text := &fakeText{response: "I could not decide on any scenes, sorry!"}
	image := &fakeImage{}
	svc, _ := testService(t, text, image)

	ills, err := svc.GenerateChapter(context.Background(), 0, Options{SceneCount: 2})
	if err != nil {
		t.Fatalf("GenerateChapter failed: %v", err)
	}
	if len(ills) != 2 {
		t.Errorf("expected 2 illustrations, got %d", len(ills))
	}
}

func TestOptionsSceneCount(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"default", Options{}, 3},
		{"explicit", Options{SceneCount: 5}, 5},
		{"images override", Options{SceneCount: 5, ImagesPerChapter: 2}, 2},
		{"clamped high", Options{SceneCount: 50}, 10},
		{"negative falls back", Options{SceneCount: -1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.sceneCount(3); got != tt.want {
				t.Errorf("sceneCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInjectChapter(t *testing.T) {
	text := &fakeText{response: sceneJSON}
	image := &fakeImage{}
	svc, _ := testService(t, text, image)

	t.Run("without cache returns markup unchanged", func(t *testing.T) {
		out, err := svc.InjectChapter(1)
		if err != nil {
			t.Fatal(err)
		}
		if out != chapterMarkup() {
			t.Error("uncached chapter should come back unchanged")
		}
	})

	t.Run("with cache injects images", func(t *testing.T) {
		if _, err := svc.GenerateChapter(context.Background(), 0, Options{}); err != nil {
			t.Fatal(err)
		}
		out, err := svc.InjectChapter(0)
		if err != nil {
			t.Fatal(err)
		}
		if n := strings.Count(out, "<img"); n != 3 {
			t.Errorf("expected 3 injected images, got %d", n)
		}
		if !strings.Contains(out, `src="images/`) {
			t.Error("image sources should be book-relative")
		}
	})
}

func waitTerminal(t *testing.T, svc *Service, jobID string) *batch.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := svc.Poll(jobID)
		if err == nil && j.Terminal() {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return nil
}

func TestGenerateBatchResume(t *testing.T) {
	text := &fakeText{response: sceneJSON}
	image := &fakeImage{failFor: map[int]bool{1: true}}
	svc, _ := testService(t, text, image)

	job, err := svc.GenerateBatch(context.Background(), []int{0, 1, 2}, Options{})
	if err != nil {
		t.Fatalf("GenerateBatch failed: %v", err)
	}
	if job.Total != 3 {
		t.Fatalf("job total = %d, want 3", job.Total)
	}

	svc.Wait()
	done := waitTerminal(t, svc, job.ID)

	if done.Completed != 2 {
		t.Errorf("completed = %d, want 2", done.Completed)
	}
	if cs := done.Chapters[1]; cs.State != batch.StateFailed || cs.Stage != "image" {
		t.Errorf("chapter 1 = %+v, want failed at image stage", cs)
	}
	for _, idx := range []int{0, 2} {
		if cs := done.Chapters[idx]; cs.State != batch.StateDone {
			t.Errorf("chapter %d = %+v, want done", idx, cs)
		}
	}

	// Re-running the same chapter set only attempts the failed chapter.
	image.mu.Lock()
	image.failFor = nil
	image.calls = 0
	image.mu.Unlock()

	job2, err := svc.GenerateBatch(context.Background(), []int{0, 1, 2}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	svc.Wait()
	done2 := waitTerminal(t, svc, job2.ID)

	if done2.Completed != 3 {
		t.Errorf("resume completed = %d, want 3", done2.Completed)
	}
	if n := image.callCount(); n != 3 {
		t.Errorf("resume should only illustrate chapter 1 (3 scenes), got %d image calls", n)
	}
}

func TestGenerateBatchRejectsOutOfRange(t *testing.T) {
	svc, _ := testService(t, &fakeText{response: sceneJSON}, &fakeImage{})
	if _, err := svc.GenerateBatch(context.Background(), []int{0, 99}, Options{}); err == nil {
		t.Error("expected error for out-of-range chapter")
	}
}
