package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/cache"
)

var invalidateRemoveImages bool

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <book-id> <chapter>",
	Short: "Drop a chapter's cached illustrations",
	Long: `Remove a chapter's entry from the illustration cache so the next
generation starts fresh. With --remove-images, the generated image files
are deleted too.

Examples:
  limner invalidate moby-dick 3
  limner invalidate moby-dick 3 --remove-images`,
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

		store := cache.NewStore(e.home.BookDir(bookID), e.logger)
		if err := store.Invalidate(chapter, invalidateRemoveImages); err != nil {
			return err
		}

		fmt.Printf("Invalidated chapter %d of %s\n", chapter, bookID)
		return nil
	},
}

func init() {
	invalidateCmd.Flags().BoolVar(&invalidateRemoveImages, "remove-images", false, "also delete the generated image files")

	rootCmd.AddCommand(invalidateCmd)
}
