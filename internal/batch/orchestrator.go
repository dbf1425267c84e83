package batch

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many chapters are illustrated at once.
const DefaultConcurrency = 3

// DefaultMinChapterWords is the word count below which a chapter is
// excluded from batch runs. Front matter, dedications, and short
// interstitial chapters rarely benefit from illustration.
const DefaultMinChapterWords = 1000

// Source supplies the chapter inspection and illustration operations a
// batch run needs. The pipeline service implements it.
type Source interface {
	// ChapterWordCount returns the approximate word count of a chapter.
	ChapterWordCount(chapterIndex int) (int, error)

	// HasIllustrations reports whether a chapter already has a valid
	// cached illustration set.
	HasIllustrations(chapterIndex int) (bool, error)

	// IllustrateChapter runs the full illustration pipeline for one
	// chapter. Failures should be wrapped in a *StageError.
	IllustrateChapter(ctx context.Context, chapterIndex int) error
}

// Orchestrator runs batch illustration jobs with bounded concurrency.
type Orchestrator struct {
	store       *Store
	concurrency int
	minWords    int
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator persisting progress to store.
func NewOrchestrator(store *Store, concurrency, minWords int, logger *slog.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if minWords <= 0 {
		minWords = DefaultMinChapterWords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       store,
		concurrency: concurrency,
		minWords:    minWords,
		logger:      logger,
	}
}

// Plan filters the requested chapters by word count, creates a pending
// job covering the survivors, and persists it. Chapters below the word
// threshold are dropped at creation so the job total reflects real work.
func (o *Orchestrator) Plan(bookID string, src Source, chapters []int) (*Job, error) {
	var eligible []int
	for _, idx := range chapters {
		words, err := src.ChapterWordCount(idx)
		if err != nil {
			return nil, err
		}
		if words < o.minWords {
			o.logger.Debug("skipping short chapter",
				"book_id", bookID,
				"chapter", idx,
				"words", words,
			)
			continue
		}
		eligible = append(eligible, idx)
	}
	sort.Ints(eligible)

	j := NewJob(bookID, eligible)
	if err := o.store.Save(j); err != nil {
		return nil, err
	}
	return j, nil
}

// result is a single chapter state transition reported by a worker.
type result struct {
	chapterIndex int
	status       ChapterStatus
}

// Execute runs every pending chapter in the job. Chapters that already
// have cached illustrations are marked done without work. Failures are
// isolated per chapter: one chapter failing never stops the others.
// The job record is persisted after every state transition, so a
// crashed run can be inspected and resumed.
func (o *Orchestrator) Execute(ctx context.Context, j *Job, src Source) error {
	var pending []int
	for idx, cs := range j.Chapters {
		if cs.State == StatePending || cs.State == StateRunning {
			pending = append(pending, idx)
		}
	}
	sort.Ints(pending)

	results := make(chan result)

	// The job map has a single owner: this goroutine applies every
	// transition and persists after each one.
	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		for r := range results {
			j.setState(r.chapterIndex, r.status)
			if err := o.store.Save(j); err != nil {
				o.logger.Warn("failed to persist job progress",
					"job_id", j.ID,
					"error", err,
				)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, idx := range pending {
		idx := idx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cached, err := src.HasIllustrations(idx)
			if err == nil && cached {
				results <- result{idx, ChapterStatus{State: StateDone}}
				return nil
			}

			results <- result{idx, ChapterStatus{State: StateRunning}}

			if err := src.IllustrateChapter(gctx, idx); err != nil {
				if errors.Is(err, context.Canceled) {
					results <- result{idx, ChapterStatus{State: StatePending}}
					return err
				}
				st := ChapterStatus{State: StateFailed, Error: err.Error()}
				var se *StageError
				if errors.As(err, &se) {
					st.Stage = se.Stage
				}
				o.logger.Warn("chapter illustration failed",
					"job_id", j.ID,
					"chapter", idx,
					"error", err,
				)
				results <- result{idx, st}
				return nil
			}

			results <- result{idx, ChapterStatus{State: StateDone}}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	<-ownerDone

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	o.logger.Info("batch job finished",
		"job_id", j.ID,
		"completed", j.Completed,
		"total", j.Total,
		"failed", len(j.Failed()),
	)
	return err
}
