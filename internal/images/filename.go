package images

import (
	"fmt"
	"regexp"
	"strings"
)

// maxTitleLength caps the sanitized chapter title used in filenames.
const maxTitleLength = 50

var underscoreRuns = regexp.MustCompile(`[\s_]+`)

// SanitizeTitle converts a chapter title into a filesystem-safe token:
// punctuation dropped, other non-alphanumerics become underscores, runs
// collapsed, and the result truncated. An empty result yields "chapter".
func SanitizeTitle(title string) string {
	var sb strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '-', r == '_':
			sb.WriteRune(r)
		case strings.ContainsRune(".,:;!?'\"", r):
			// Skip punctuation entirely.
		default:
			sb.WriteRune('_')
		}
	}

	sanitized := underscoreRuns.ReplaceAllString(sb.String(), "_")
	sanitized = strings.Trim(sanitized, "_")

	if len(sanitized) > maxTitleLength {
		sanitized = strings.TrimRight(sanitized[:maxTitleLength], "_")
	}
	if sanitized == "" {
		return "chapter"
	}
	return sanitized
}

// FileName returns the book-relative path for a generated scene image,
// e.g. "images/generated_ch3_The_Spouter_Inn_scene2.png".
func FileName(chapterIndex, sceneIndex int, chapterTitle string) string {
	if chapterTitle == "" {
		return fmt.Sprintf("images/generated_ch%d_scene%d.png", chapterIndex, sceneIndex)
	}
	return fmt.Sprintf("images/generated_ch%d_%s_scene%d.png", chapterIndex, SanitizeTitle(chapterTitle), sceneIndex)
}
