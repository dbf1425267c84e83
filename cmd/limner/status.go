package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/batch"
	"github.com/seanpile/limner/internal/book"
	"github.com/seanpile/limner/internal/cache"
)

var statusCmd = &cobra.Command{
	Use:   "status <book-id> [job-id]",
	Short: "Show illustration status per chapter, or a batch job snapshot",
	Long: `Without a job ID, shows each chapter's cached illustration state.
With a job ID, shows the persisted snapshot of that batch job.

Neither form touches the generation backend, so no API key is needed.

Examples:
  limner status moby-dick
  limner status moby-dick 7d61bfc2-...`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID := args[0]

		e, err := newEnv()
		if err != nil {
			return err
		}

		if len(args) == 2 {
			job, err := batch.NewStore(e.home.JobsPath()).Load(args[1])
			if err != nil {
				return fmt.Errorf("failed to load job %s: %w", args[1], err)
			}
			printJob(job)
			return nil
		}

		b, err := book.NewLibrary(e.home).Open(bookID)
		if err != nil {
			return err
		}
		store := cache.NewStore(e.home.BookDir(bookID), e.logger)

		fmt.Printf("%s (%d chapters)\n", b.BookTitle(), b.ChapterCount())
		for i := 0; i < b.ChapterCount(); i++ {
			title, _ := b.ChapterTitle(i)
			words, _ := b.ChapterWordCount(i)

			state := "not illustrated"
			if rec, ok, err := store.Get(i); err == nil && ok {
				state = fmt.Sprintf("%d images", len(rec.Images))
			}
			fmt.Printf("  %3d  %-40s %6d words  %s\n", i, title, words, state)
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List batch job IDs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}

		store := batch.NewStore(e.home.JobsPath())
		ids, err := store.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			line := id
			if job, err := store.Load(id); err == nil {
				line = fmt.Sprintf("%s  %s  %d/%d done", id, job.BookID, job.Completed, job.Total)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
}
