package scenes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// sceneSchema validates the shape we accept from the model before trusting
// any field. Everything beyond "summary" is optional and defaulted locally.
const sceneSchema = `{
	"type": "object",
	"required": ["scenes"],
	"properties": {
		"scenes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["summary"],
				"properties": {
					"scene_number": {"type": "integer"},
					"summary": {"type": "string"},
					"anchor_sentence": {"type": ["string", "null"]},
					"location_percent": {"type": "number"}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("scenes.json", sceneSchema)

// wireScene is the JSON shape the model is asked to produce.
type wireScene struct {
	SceneNumber     int     `json:"scene_number"`
	Summary         string  `json:"summary"`
	AnchorSentence  *string `json:"anchor_sentence"`
	LocationPercent float64 `json:"location_percent"`
}

type wireResponse struct {
	Scenes []wireScene `json:"scenes"`
}

// parseScenes extracts a scene list from model output, with lightweight
// recovery for markdown code fences and surrounding prose.
func parseScenes(content string) ([]Scene, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty scene response")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		scenes, err := decodeScenes(candidate)
		if err == nil {
			return scenes, nil
		}
	}

	return nil, fmt.Errorf("no well-formed scene JSON found in response")
}

// decodeScenes parses and schema-validates one JSON candidate.
// A bare array is accepted as shorthand for {"scenes": [...]}.
func decodeScenes(candidate string) ([]Scene, error) {
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, err
	}
	if _, ok := parsed.([]any); ok {
		wrapped, err := json.Marshal(map[string]any{"scenes": parsed})
		if err != nil {
			return nil, err
		}
		candidate = string(wrapped)
		if err := json.Unmarshal(wrapped, &parsed); err != nil {
			return nil, err
		}
	}

	if err := compiledSchema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("scene JSON does not match schema: %w", err)
	}

	var resp wireResponse
	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	if err := dec.Decode(&resp); err != nil {
		return nil, err
	}

	out := make([]Scene, 0, len(resp.Scenes))
	for _, w := range resp.Scenes {
		s := Scene{
			Index:           w.SceneNumber,
			Summary:         strings.TrimSpace(w.Summary),
			LocationPercent: int(w.LocationPercent),
		}
		if w.AnchorSentence != nil {
			s.AnchorSentence = strings.TrimSpace(*w.AnchorSentence)
		}
		out = append(out, s)
	}
	return out, nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
