package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/book"
	"github.com/seanpile/limner/internal/pipeline"
)

var renderCmd = &cobra.Command{
	Use:   "render <book-id> <chapter>",
	Short: "Print chapter markup with cached illustrations injected",
	Long: `Print a chapter's rendered content with any cached illustrations
injected at their stored locations. Chapters without cached images are
printed unchanged. Nothing is generated; no API key is needed.

Example:
  limner render moby-dick 3 > chapter3.html`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID := args[0]
		chapter, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid chapter index %q: %w", args[1], err)
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		b, err := book.NewLibrary(e.home).Open(bookID)
		if err != nil {
			return err
		}

		// Injection only reads the cache, so the service runs without a
		// generation backend.
		svc := pipeline.New(e.cfg, e.home, bookID, b, nil, nil, e.logger)
		out, err := svc.InjectChapter(chapter)
		if err != nil {
			return err
		}

		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
