// Package anchor maps a scene's anchor sentence (or, failing that, its
// location percentage) onto a paragraph index in the chapter.
// Resolution is a pure function of its inputs: the same anchor, location,
// and paragraph set always yields the same index.
package anchor

import (
	"math"
	"strings"
	"unicode"
)

// NoAnchor is the sentinel returned when a chapter has no paragraphs.
// The injector treats it as "append at end of content".
const NoAnchor = -1

// DefaultThreshold is the minimum fuzzy-match score to accept a paragraph
// as the anchor's home. Generated anchors are often lightly paraphrased,
// so exact containment alone is not enough.
const DefaultThreshold = 0.6

// Resolver resolves insertion points for scene anchors.
type Resolver struct {
	// Threshold overrides DefaultThreshold when > 0.
	Threshold float64
}

// Resolve returns the index of the paragraph the scene's image should
// follow. Priority: exact containment of the normalized anchor, then
// fuzzy token match above the threshold, then positional placement from
// locationPercent. An empty paragraph list returns NoAnchor.
func (r Resolver) Resolve(anchorSentence string, locationPercent int, paragraphs []string) int {
	if len(paragraphs) == 0 {
		return NoAnchor
	}

	if anchor := Normalize(anchorSentence); anchor != "" {
		for i, p := range paragraphs {
			if strings.Contains(Normalize(p), anchor) {
				return i
			}
		}

		threshold := r.Threshold
		if threshold <= 0 {
			threshold = DefaultThreshold
		}
		if idx, score := bestFuzzyMatch(anchor, paragraphs); score >= threshold {
			return idx
		}
	}

	return positional(locationPercent, len(paragraphs))
}

// positional converts a location percentage to a clamped paragraph index.
func positional(locationPercent, count int) int {
	if locationPercent < 0 {
		locationPercent = 0
	}
	if locationPercent > 100 {
		locationPercent = 100
	}
	idx := int(math.Floor(float64(locationPercent) / 100 * float64(count)))
	if idx >= count {
		idx = count - 1
	}
	return idx
}

// bestFuzzyMatch scores every paragraph against the normalized anchor and
// returns the best one. Score is the fraction of anchor tokens present in
// the paragraph, a monotonic containment measure that tolerates the
// paraphrasing and reordering typical of generated anchors. Ties keep the
// earliest paragraph (document order).
func bestFuzzyMatch(normalizedAnchor string, paragraphs []string) (int, float64) {
	anchorTokens := strings.Fields(normalizedAnchor)
	if len(anchorTokens) == 0 {
		return 0, 0
	}

	bestIdx, bestScore := 0, 0.0
	for i, p := range paragraphs {
		tokens := make(map[string]struct{})
		for _, tok := range strings.Fields(Normalize(p)) {
			tokens[tok] = struct{}{}
		}

		matched := 0
		for _, tok := range anchorTokens {
			if _, ok := tokens[tok]; ok {
				matched++
			}
		}

		score := float64(matched) / float64(len(anchorTokens))
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx, bestScore
}

// Normalize case-folds, strips punctuation, and collapses whitespace so
// that lightly reworded text still compares equal.
func Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
		// Punctuation and symbols are dropped.
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
