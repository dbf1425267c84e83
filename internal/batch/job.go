package batch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle of a single chapter within a job.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// ChapterStatus tracks one chapter's progress through a batch job.
type ChapterStatus struct {
	State State  `json:"state"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
}

// Job is a batch illustration run over a set of chapters in one book.
type Job struct {
	ID        string                `json:"id"`
	BookID    string                `json:"book_id"`
	Total     int                   `json:"total"`
	Completed int                   `json:"completed"`
	Chapters  map[int]ChapterStatus `json:"chapters"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewJob creates a pending job covering the given chapter indexes.
// Duplicate indexes collapse to one entry so Completed can reach Total.
func NewJob(bookID string, chapters []int) *Job {
	now := time.Now().UTC()
	j := &Job{
		ID:        uuid.New().String(),
		BookID:    bookID,
		Chapters:  make(map[int]ChapterStatus, len(chapters)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, idx := range chapters {
		j.Chapters[idx] = ChapterStatus{State: StatePending}
	}
	j.Total = len(j.Chapters)
	return j
}

// setState transitions one chapter and refreshes the completed count.
func (j *Job) setState(chapterIndex int, st ChapterStatus) {
	j.Chapters[chapterIndex] = st
	completed := 0
	for _, cs := range j.Chapters {
		if cs.State == StateDone {
			completed++
		}
	}
	j.Completed = completed
	j.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy safe to read while the original is updated.
func (j *Job) Clone() *Job {
	cp := *j
	cp.Chapters = make(map[int]ChapterStatus, len(j.Chapters))
	for idx, cs := range j.Chapters {
		cp.Chapters[idx] = cs
	}
	return &cp
}

// Terminal reports whether every chapter has reached done or failed.
func (j *Job) Terminal() bool {
	for _, cs := range j.Chapters {
		if cs.State == StatePending || cs.State == StateRunning {
			return false
		}
	}
	return true
}

// Failed returns the indexes of chapters that ended in failure.
func (j *Job) Failed() []int {
	var out []int
	for idx, cs := range j.Chapters {
		if cs.State == StateFailed {
			out = append(out, idx)
		}
	}
	return out
}

// StageError wraps a chapter failure with the pipeline stage it occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a StageError for the given stage.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
