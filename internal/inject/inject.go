// Package inject rewrites chapter markup so generated images follow their
// resolved paragraphs. It works on raw markup with the same regexp-based
// paragraph handling used for the rest of the content transformations, so
// insertions never disturb unrelated markup.
package inject

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/seanpile/limner/internal/anchor"
)

// Placement binds one image reference to its resolved paragraph.
type Placement struct {
	// ParagraphIndex is the paragraph the image follows, or anchor.NoAnchor
	// to append at the end of the content.
	ParagraphIndex int

	// SceneIndex orders images that share a paragraph.
	SceneIndex int

	// ImagePath is the book-relative image reference, e.g. "images/x.png".
	ImagePath string
}

var (
	openTag  = regexp.MustCompile(`(?i)<p[\s>]`)
	closeTag = regexp.MustCompile(`(?i)</p\s*>`)
	allTags  = regexp.MustCompile(`<[^>]*>`)
)

// imgTemplate matches the styling applied to images embedded by the
// original book conversion, with a path always relative to the book's
// own images directory.
const imgTemplate = `<img src="%s" alt="Generated illustration" style="max-width: 100%%; height: auto; display: block; margin: 20px auto;"/>`

// Paragraphs returns the plain text of each <p> block in document order,
// for use as the anchor resolver's paragraph set.
func Paragraphs(content string) []string {
	var out []string
	for _, bounds := range paragraphBounds(content) {
		inner := content[bounds[0]:bounds[1]]
		out = append(out, strings.TrimSpace(allTags.ReplaceAllString(inner, " ")))
	}
	return out
}

// Inject inserts an image element immediately after each placement's
// paragraph. Distinct paragraph indices are processed last to first so an
// insertion never shifts the offset of a paragraph still pending; images
// sharing a paragraph are inserted together in scene order. Content with
// no paragraph markup gets all images appended at the end.
func Inject(content string, placements []Placement) string {
	if len(placements) == 0 {
		return content
	}

	bounds := paragraphBounds(content)

	grouped := make(map[int][]Placement)
	for _, p := range placements {
		idx := p.ParagraphIndex
		if idx == anchor.NoAnchor || idx >= len(bounds) {
			idx = len(bounds) // past-the-end bucket, appended after everything
		}
		grouped[idx] = append(grouped[idx], p)
	}

	indices := make([]int, 0, len(grouped))
	for idx := range grouped {
		indices = append(indices, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	for _, idx := range indices {
		group := grouped[idx]
		sort.Slice(group, func(i, j int) bool {
			return group[i].SceneIndex < group[j].SceneIndex
		})

		var tags strings.Builder
		for _, p := range group {
			tags.WriteString("\n")
			tags.WriteString(imageTag(p.ImagePath))
		}

		at := len(content)
		if idx < len(bounds) {
			at = bounds[idx][2]
		}
		content = content[:at] + tags.String() + content[at:]
	}

	return content
}

// imageTag renders one image element. The source is forced into the
// book-relative images directory regardless of what path the reference
// carries, so absolute filesystem paths never leak into content.
func imageTag(imagePath string) string {
	return fmt.Sprintf(imgTemplate, "images/"+path.Base(imagePath))
}

// paragraphBounds locates every <p> block. Each entry is
// [innerStart, innerEnd, afterClose]: the inner text span and the offset
// just past the closing tag.
func paragraphBounds(content string) [][3]int {
	opens := openTag.FindAllStringIndex(content, -1)
	var bounds [][3]int
	searchFrom := 0
	for _, open := range opens {
		if open[0] < searchFrom {
			// Open tag inside a previous paragraph's span.
			continue
		}
		innerStart := strings.Index(content[open[0]:], ">")
		if innerStart < 0 {
			break
		}
		innerStart += open[0] + 1

		end := closeTag.FindStringIndex(content[innerStart:])
		if end == nil {
			break
		}
		bounds = append(bounds, [3]int{innerStart, innerStart + end[0], innerStart + end[1]})
		searchFrom = innerStart + end[1]
	}
	return bounds
}
