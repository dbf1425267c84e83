package pipeline

import (
	"context"
	"fmt"

	"github.com/seanpile/limner/internal/backend"
	"github.com/seanpile/limner/internal/batch"
)

// batchSource adapts the Service to the orchestrator's Source interface,
// carrying the request options and job ID into each chapter run.
type batchSource struct {
	svc   *Service
	opts  Options
	jobID string
}

func (b *batchSource) ChapterWordCount(chapterIndex int) (int, error) {
	return b.svc.provider.ChapterWordCount(chapterIndex)
}

func (b *batchSource) HasIllustrations(chapterIndex int) (bool, error) {
	_, ok, err := b.svc.store.Get(chapterIndex)
	return ok, err
}

func (b *batchSource) IllustrateChapter(ctx context.Context, chapterIndex int) error {
	m := backend.MetaFrom(ctx)
	m.JobID = b.jobID
	_, err := b.svc.GenerateChapter(backend.WithMeta(ctx, m), chapterIndex, b.opts)
	return err
}

// GenerateBatch creates a batch job over the given chapters and starts
// executing it in the background. The returned job is the initial
// snapshot; Poll observes progress, Wait blocks until all running
// batches finish.
func (s *Service) GenerateBatch(ctx context.Context, chapterIndices []int, opts Options) (*batch.Job, error) {
	for _, idx := range chapterIndices {
		if idx < 0 || idx >= s.provider.ChapterCount() {
			return nil, fmt.Errorf("chapter %d out of range (book has %d chapters)", idx, s.provider.ChapterCount())
		}
	}

	src := &batchSource{svc: s, opts: opts}
	job, err := s.orch.Plan(s.bookID, src, chapterIndices)
	if err != nil {
		return nil, err
	}
	src.jobID = job.ID

	// Snapshot before the executor starts mutating the record.
	snapshot := job.Clone()

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		if err := s.orch.Execute(ctx, job, src); err != nil {
			s.logger.Warn("batch execution stopped",
				"job_id", job.ID,
				"error", err,
			)
		}
	}()

	return snapshot, nil
}

// Poll returns the persisted snapshot of a batch job.
func (s *Service) Poll(jobID string) (*batch.Job, error) {
	return s.jobs.Load(jobID)
}

// Jobs lists known batch job IDs, newest first.
func (s *Service) Jobs() ([]string, error) {
	return s.jobs.List()
}

// Wait blocks until every batch started by GenerateBatch has finished.
func (s *Service) Wait() {
	s.running.Wait()
}

var _ batch.Source = (*batchSource)(nil)
