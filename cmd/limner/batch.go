package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/batch"
	"github.com/seanpile/limner/internal/config"
	"github.com/seanpile/limner/internal/pipeline"
)

var (
	batchChapters    string
	batchConcurrency int
	batchStyle       string
	batchDetach      bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <book-id>",
	Short: "Illustrate many chapters as a resumable job",
	Long: `Run the illustration pipeline over a set of chapters with bounded
concurrency. Chapters below the configured word count are skipped, and
chapters that already have illustrations complete immediately. Progress
is persisted per chapter, so an interrupted or partially failed job can
be re-run and only the remaining chapters are attempted.

Examples:
  limner batch moby-dick                      # All chapters
  limner batch moby-dick --chapters 0,1,2     # A specific set
  limner batch moby-dick --concurrency 5
  limner batch moby-dick --detach             # Print the job ID only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID := args[0]

		svc, _, err := newService(cmd, bookID, func(c *config.Config) {
			if batchConcurrency > 0 {
				c.Batch.Concurrency = batchConcurrency
			}
		})
		if err != nil {
			return err
		}

		chapters, err := parseChapters(batchChapters, svc.ChapterCount())
		if err != nil {
			return err
		}

		job, err := svc.GenerateBatch(cmd.Context(), chapters, pipeline.Options{
			Style: batchStyle,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Job %s: %d chapters\n", job.ID, job.Total)
		if batchDetach {
			svc.Wait()
			return nil
		}

		last := -1
		for {
			snapshot, err := svc.Poll(job.ID)
			if err == nil {
				if snapshot.Completed != last {
					fmt.Printf("  %d/%d chapters done\n", snapshot.Completed, snapshot.Total)
					last = snapshot.Completed
				}
				if snapshot.Terminal() {
					printJob(snapshot)
					return nil
				}
			}
			select {
			case <-cmd.Context().Done():
				svc.Wait()
				return cmd.Context().Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	},
}

// parseChapters turns "0,1,2" into indexes. Empty means every chapter.
func parseChapters(s string, count int) ([]int, error) {
	if s == "" {
		out := make([]int, count)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	var out []int
	for _, field := range strings.Split(s, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid chapter index %q: %w", field, err)
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

func printJob(j *batch.Job) {
	fmt.Printf("Job %s: %d/%d chapters done\n", j.ID, j.Completed, j.Total)

	indexes := make([]int, 0, len(j.Chapters))
	for idx := range j.Chapters {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		cs := j.Chapters[idx]
		line := fmt.Sprintf("  chapter %d: %s", idx, cs.State)
		if cs.State == batch.StateFailed {
			line += fmt.Sprintf(" (%s: %s)", cs.Stage, cs.Error)
		}
		fmt.Println(line)
	}
}

func init() {
	batchCmd.Flags().StringVar(&batchChapters, "chapters", "", "comma-separated chapter indexes (default: all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "chapters illustrated simultaneously (default from config)")
	batchCmd.Flags().StringVar(&batchStyle, "style", "", "style modifier applied to every chapter")
	batchCmd.Flags().BoolVar(&batchDetach, "detach", false, "print the job ID and suppress progress output")

	rootCmd.AddCommand(batchCmd)
}
