// Package images converts scene descriptors into illustration image bytes
// via the image-generation backend, and owns the naming of the resulting
// files on disk.
package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/seanpile/limner/internal/backend"
	"github.com/seanpile/limner/internal/scenes"
)

var (
	// ErrNoImageInResponse means every response part was text or empty.
	ErrNoImageInResponse = errors.New("no image data found in response")

	// ErrInvalidImage means the backend returned bytes that are too small
	// or carry no known image signature (typically a placeholder or blank).
	ErrInvalidImage = errors.New("backend returned invalid image data")
)

// defaultMinImageBytes rejects payloads small enough to be an error page
// or placeholder rather than a rendered image.
const defaultMinImageBytes = 1024

// defaultMaxSummaryChars bounds the scene summary embedded in the prompt.
const defaultMaxSummaryChars = 2000

// Synthesizer generates one image per scene descriptor.
// Each Generate is a single attempt; retries belong to the orchestrator.
type Synthesizer struct {
	gen             backend.ImageGenerator
	minImageBytes   int
	maxSummaryChars int
	logger          *slog.Logger
}

// NewSynthesizer creates an image synthesizer. Zero bounds use defaults.
func NewSynthesizer(gen backend.ImageGenerator, minImageBytes, maxSummaryChars int, logger *slog.Logger) *Synthesizer {
	if minImageBytes <= 0 {
		minImageBytes = defaultMinImageBytes
	}
	if maxSummaryChars <= 0 {
		maxSummaryChars = defaultMaxSummaryChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		gen:             gen,
		minImageBytes:   minImageBytes,
		maxSummaryChars: maxSummaryChars,
		logger:          logger,
	}
}

// Generate produces validated image bytes for a scene.
// bookTitle and style are optional prompt context.
func (s *Synthesizer) Generate(ctx context.Context, scene scenes.Scene, bookTitle, style string) ([]byte, error) {
	prompt := s.buildPrompt(scene, bookTitle, style)

	parts, err := s.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("image generation call failed: %w", err)
	}

	data, ok := selectImagePart(parts)
	if !ok {
		return nil, ErrNoImageInResponse
	}

	if len(data) < s.minImageBytes {
		return nil, fmt.Errorf("%w: %d bytes below minimum %d", ErrInvalidImage, len(data), s.minImageBytes)
	}
	if Format(data) == "" {
		return nil, fmt.Errorf("%w: unrecognized image signature", ErrInvalidImage)
	}

	s.logger.Debug("generated scene image",
		"scene", scene.Index,
		"bytes", len(data),
		"format", Format(data))
	return data, nil
}

// selectImagePart scans the response parts for the first usable image.
// Inline binary data wins; a text part that base64-decodes to a recognized
// image format is accepted as a fallback.
func selectImagePart(parts []backend.Part) ([]byte, bool) {
	for _, p := range parts {
		if len(p.Data) > 0 {
			return p.Data, true
		}
	}
	for _, p := range parts {
		if p.Text == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Text))
		if err != nil {
			continue
		}
		if Format(decoded) != "" {
			return decoded, true
		}
	}
	return nil, false
}

// buildPrompt composes the image prompt from the scene summary, optional
// book title, and optional style modifier. Overlong summaries are truncated
// rather than failing the scene.
func (s *Synthesizer) buildPrompt(scene scenes.Scene, bookTitle, style string) string {
	summary := truncate(scene.Summary, s.maxSummaryChars)

	bookContext := " from a book"
	if bookTitle != "" {
		bookContext = fmt.Sprintf(" from the book '%s'", bookTitle)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a detailed, cinematic illustration of this scene%s:\n\n%s\n\n", bookContext, summary)
	sb.WriteString(`The image should be:
- High quality and visually appealing
- Appropriate for a book illustration
- Capturing the mood and atmosphere of the scene
- Detailed and evocative
- In a style suitable for a literary work`)
	if bookTitle != "" {
		fmt.Fprintf(&sb, " and consistent with the themes of '%s'", bookTitle)
	}
	if style != "" {
		fmt.Fprintf(&sb, "\n- Rendered in a %s style", style)
	}
	sb.WriteString("\n\nGenerate a beautiful illustration that captures the essence of this scene.")
	return sb.String()
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

// Format returns the image format ("png", "jpeg", "webp", "gif") indicated
// by the payload's leading signature, or "" if unrecognized.
func Format(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "png"
	case len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff:
		return "jpeg"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp"
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return "gif"
	default:
		return ""
	}
}
