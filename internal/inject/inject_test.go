package inject

import (
	"strings"
	"testing"

	"github.com/seanpile/limner/internal/anchor"
)

const sampleContent = `<html><body>
<h1>Chapter 1</h1>
<p>First paragraph.</p>
<p class="indent">Second <em>paragraph</em>.</p>
<p>Third paragraph.</p>
</body></html>`

func TestParagraphs(t *testing.T) {
	got := Paragraphs(sampleContent)
	want := []string{"First paragraph.", "Second paragraph .", "Third paragraph."}
	if len(got) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d: %v", len(want), len(got), got)
	}
	if got[0] != "First paragraph." {
		t.Errorf("unexpected first paragraph: %q", got[0])
	}
	if !strings.Contains(got[1], "Second") || !strings.Contains(got[1], "paragraph") {
		t.Errorf("inline tags should be stripped: %q", got[1])
	}

	t.Run("no paragraphs", func(t *testing.T) {
		if got := Paragraphs("<div>no p tags here</div>"); len(got) != 0 {
			t.Errorf("expected no paragraphs, got %v", got)
		}
	})
}

func TestInject(t *testing.T) {
	t.Run("image follows its paragraph", func(t *testing.T) {
		out := Inject(sampleContent, []Placement{
			{ParagraphIndex: 1, SceneIndex: 1, ImagePath: "images/a.png"},
		})

		idx := strings.Index(out, `src="images/a.png"`)
		if idx < 0 {
			t.Fatal("expected image tag in output")
		}
		secondClose := strings.Index(out, "</p>") // first close
		secondClose = strings.Index(out[secondClose+4:], "</p>") + secondClose + 4
		if idx < secondClose {
			t.Error("image should appear after the second paragraph's close")
		}
		thirdOpen := strings.Index(out, "<p>Third")
		if idx > thirdOpen {
			t.Error("image should appear before the third paragraph")
		}
	})

	t.Run("offset stability with multiple placements", func(t *testing.T) {
		single := Inject(sampleContent, []Placement{
			{ParagraphIndex: 0, SceneIndex: 1, ImagePath: "images/a.png"},
		})
		both := Inject(sampleContent, []Placement{
			{ParagraphIndex: 0, SceneIndex: 1, ImagePath: "images/a.png"},
			{ParagraphIndex: 2, SceneIndex: 2, ImagePath: "images/b.png"},
		})

		posSingle := strings.Index(single, `src="images/a.png"`)
		posBoth := strings.Index(both, `src="images/a.png"`)
		if posSingle != posBoth {
			t.Errorf("imgA position changed by imgB insertion: %d vs %d", posSingle, posBoth)
		}

		aPos := strings.Index(both, `src="images/a.png"`)
		bPos := strings.Index(both, `src="images/b.png"`)
		if aPos > bPos {
			t.Error("imgA should precede imgB in the document")
		}
	})

	t.Run("same paragraph keeps scene order", func(t *testing.T) {
		out := Inject(sampleContent, []Placement{
			{ParagraphIndex: 1, SceneIndex: 3, ImagePath: "images/third.png"},
			{ParagraphIndex: 1, SceneIndex: 1, ImagePath: "images/first.png"},
		})
		if strings.Index(out, "first.png") > strings.Index(out, "third.png") {
			t.Error("images sharing a paragraph should be ordered by scene index")
		}
	})

	t.Run("no paragraph markup appends at end", func(t *testing.T) {
		content := "<div>Just a block of text.</div>"
		out := Inject(content, []Placement{
			{ParagraphIndex: 0, SceneIndex: 1, ImagePath: "images/a.png"},
		})
		if !strings.HasPrefix(out, content) {
			t.Error("original content should be preserved verbatim")
		}
		if !strings.Contains(out, "images/a.png") {
			t.Error("image must not be silently dropped")
		}
	})

	t.Run("sentinel placement appends at end", func(t *testing.T) {
		out := Inject(sampleContent, []Placement{
			{ParagraphIndex: anchor.NoAnchor, SceneIndex: 1, ImagePath: "images/a.png"},
		})
		if strings.Index(out, "images/a.png") < strings.Index(out, "</body>") {
			t.Error("sentinel image should be appended after all content")
		}
	})

	t.Run("absolute paths are stripped", func(t *testing.T) {
		out := Inject(sampleContent, []Placement{
			{ParagraphIndex: 0, SceneIndex: 1, ImagePath: "/home/user/.limner/books/x/images/a.png"},
		})
		if strings.Contains(out, "/home/user") {
			t.Error("absolute filesystem path leaked into content")
		}
		if !strings.Contains(out, `src="images/a.png"`) {
			t.Error("expected book-relative image source")
		}
	})

	t.Run("no placements is a no-op", func(t *testing.T) {
		if out := Inject(sampleContent, nil); out != sampleContent {
			t.Error("expected content unchanged")
		}
	})

	t.Run("out of range index appends at end", func(t *testing.T) {
		out := Inject(sampleContent, []Placement{
			{ParagraphIndex: 99, SceneIndex: 1, ImagePath: "images/a.png"},
		})
		if !strings.Contains(out, "images/a.png") {
			t.Error("image must not be dropped for an out-of-range index")
		}
	})
}
