// Package calls records backend API calls for traceability.
// Every scene-analysis and image-generation call is logged with its
// model, timing, and outcome to a per-book JSONL file.
package calls

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what capability a call exercised.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Call represents a recorded backend API call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	BookID       string `json:"book_id,omitempty"`
	ChapterIndex int    `json:"chapter_index"`
	SceneIndex   int    `json:"scene_index,omitempty"`
	JobID        string `json:"job_id,omitempty"`

	// Request info
	Kind        Kind   `json:"kind"`
	Model       string `json:"model"`
	PromptChars int    `json:"prompt_chars"`

	// Response info
	ResponseChars int `json:"response_chars,omitempty"`
	ImageBytes    int `json:"image_bytes,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// New creates a Call with a fresh ID and timestamp.
func New(kind Kind, model string) *Call {
	return &Call{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Model:     model,
	}
}

// Recorder appends call records to a JSONL file.
// Recording is best-effort: failures are logged, never propagated,
// so an unwritable log can't fail an illustration run.
type Recorder struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to the given path.
func NewRecorder(path string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{path: path, logger: logger}
}

// Record appends a call record to the log file.
func (r *Recorder) Record(c *Call) {
	if c == nil {
		return
	}

	data, err := json.Marshal(c)
	if err != nil {
		r.logger.Warn("failed to serialize call record", "error", err, "call_id", c.ID)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.logger.Warn("failed to create call log directory", "error", err)
		return
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn("failed to open call log", "error", err, "path", r.path)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		r.logger.Warn("failed to write call record", "error", err, "call_id", c.ID)
	}
}

// List reads back all recorded calls. Missing log files yield an empty list.
func (r *Recorder) List() ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Call
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var c Call
		if err := dec.Decode(&c); err != nil {
			// A truncated trailing line is not worth failing the read.
			r.logger.Warn("skipping malformed call record", "error", err)
			break
		}
		out = append(out, c)
	}
	return out, nil
}
