package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/pipeline"
)

var (
	illustrateScenes int
	illustrateStyle  string
)

var illustrateCmd = &cobra.Command{
	Use:   "illustrate <book-id> <chapter>",
	Short: "Generate illustrations for one chapter",
	Long: `Generate illustrations for a single chapter of a parsed book.

Scenes are identified from the chapter text, one image is generated per
scene, and each image is anchored to a paragraph in the rendered content.
Results are cached: re-running on an illustrated chapter is a no-op.

Examples:
  limner illustrate moby-dick 3
  limner illustrate moby-dick 3 --scenes 5 --style watercolor`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID := args[0]
		chapter, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid chapter index %q: %w", args[1], err)
		}

		svc, _, err := newService(cmd, bookID)
		if err != nil {
			return err
		}

		ills, err := svc.GenerateChapter(cmd.Context(), chapter, pipeline.Options{
			SceneCount: illustrateScenes,
			Style:      illustrateStyle,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Illustrated chapter %d of %s (%d images)\n", chapter, bookID, len(ills))
		for _, ill := range ills {
			fmt.Printf("  scene %d: %s (paragraph %d)\n", ill.SceneIndex+1, ill.ImagePath, ill.ParagraphIndex)
		}
		return nil
	},
}

func init() {
	illustrateCmd.Flags().IntVar(&illustrateScenes, "scenes", 0, "scenes per chapter (default from config)")
	illustrateCmd.Flags().StringVar(&illustrateStyle, "style", "", "style modifier, e.g. \"watercolor\"")

	rootCmd.AddCommand(illustrateCmd)
}
