// Package scenes identifies illustratable moments in chapter text.
// The analyzer asks the text backend for a fixed-size list of scene
// descriptors and defensively parses the semi-structured reply; on any
// parse problem it degrades to synthetic, evenly spaced scenes rather
// than failing the chapter.
package scenes

import (
	"sort"
)

// Scene is one narrative moment identified in a chapter.
type Scene struct {
	// Index is the 1-based scene number, assigned after sorting by location.
	Index int

	// Summary describes the scene for the image prompt.
	Summary string

	// AnchorSentence is text the analyzer believes appears near the
	// scene's position in the source. Empty means no anchor.
	AnchorSentence string

	// LocationPercent is the scene's normalized position in the chapter,
	// clamped to [0, 100].
	LocationPercent int
}

// genericSummary is used for scenes invented when the backend gives us
// nothing usable.
const genericSummary = "An important scene from the chapter"

// syntheticLocation returns the evenly spaced location for scene i of n,
// e.g. 25/50/75 for n=3.
func syntheticLocation(i, n int) int {
	return (i + 1) * 100 / (n + 1)
}

// Synthetic returns n generic scenes evenly spaced from 0-100 with no anchors.
func Synthetic(n int) []Scene {
	out := make([]Scene, n)
	for i := range out {
		out[i] = Scene{
			Index:           i + 1,
			Summary:         genericSummary,
			LocationPercent: syntheticLocation(i, n),
		}
	}
	return out
}

// normalize forces a parsed scene list into the contract shape: percents
// clamped to [0,100], exactly n entries (padded with synthetic scenes or
// truncated), sorted ascending by location, renumbered 1..n.
func normalize(in []Scene, n int) []Scene {
	out := make([]Scene, 0, n)
	for _, s := range in {
		if len(out) == n {
			break
		}
		if s.Summary == "" {
			s.Summary = genericSummary
		}
		s.LocationPercent = clampPercent(s.LocationPercent)
		out = append(out, s)
	}

	for len(out) < n {
		out = append(out, Scene{
			Summary:         genericSummary,
			LocationPercent: syntheticLocation(len(out), n),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LocationPercent < out[j].LocationPercent
	})
	for i := range out {
		out[i].Index = i + 1
	}
	return out
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
