package scenes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/seanpile/limner/internal/backend"
)

// defaultMaxChapterChars bounds the chapter text sent for analysis so a
// very long chapter can't blow the model's context window.
const defaultMaxChapterChars = 50000

// Analyzer asks the text backend for scene descriptors.
type Analyzer struct {
	gen             backend.TextGenerator
	maxChapterChars int
	logger          *slog.Logger
}

// NewAnalyzer creates a scene analyzer. maxChapterChars <= 0 uses the default.
func NewAnalyzer(gen backend.TextGenerator, maxChapterChars int, logger *slog.Logger) *Analyzer {
	if maxChapterChars <= 0 {
		maxChapterChars = defaultMaxChapterChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{gen: gen, maxChapterChars: maxChapterChars, logger: logger}
}

// Analyze returns exactly count scenes for the chapter text, sorted by
// ascending location. Empty text short-circuits to synthetic scenes without
// a backend call. Unparseable backend output degrades to synthetic scenes;
// only transport-level failures are returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, chapterText string, count int) ([]Scene, error) {
	if count <= 0 {
		count = 3
	}

	if strings.TrimSpace(chapterText) == "" {
		a.logger.Debug("empty chapter text, using synthetic scenes", "count", count)
		return Synthetic(count), nil
	}

	chapterText = truncate(chapterText, a.maxChapterChars)

	response, err := a.gen.GenerateText(ctx, buildPrompt(chapterText, count))
	if err != nil {
		return nil, fmt.Errorf("scene analysis call failed: %w", err)
	}

	parsed, err := parseScenes(response)
	if err != nil {
		a.logger.Warn("scene response unparseable, falling back to synthetic scenes",
			"error", err,
			"response_chars", len(response))
		return Synthetic(count), nil
	}

	return normalize(parsed, count), nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// buildPrompt asks for structured JSON: a summary, an anchor sentence
// quoted from the text, and a location percentage per scene.
func buildPrompt(chapterText string, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Analyze the following chapter from a book and identify the %d most important scenes.
For each scene, provide:
1. A brief summary (2-3 sentences)
2. A short sentence quoted verbatim from the text near where the scene occurs (the "anchor sentence")
3. An approximate location in the text (as a percentage: 0-100, where 0 is the beginning and 100 is the end)

Format your response as JSON with this structure:
{
    "scenes": [
`, count)
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&sb, `        {
            "scene_number": %d,
            "summary": "Brief description of the scene",
            "anchor_sentence": "A sentence copied from the text",
            "location_percent": %d
        }`, i, syntheticLocation(i-1, count))
		if i < count {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`    ]
}

Chapter text:
`)
	sb.WriteString(chapterText)
	return sb.String()
}
