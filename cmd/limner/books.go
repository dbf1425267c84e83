package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/book"
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List parsed books in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}

		infos, err := book.NewLibrary(e.home).List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Printf("No books found under %s\n", e.home.BooksPath())
			return nil
		}

		for _, info := range infos {
			fmt.Printf("%-24s %s", info.ID, info.Title)
			if info.Author != "" {
				fmt.Printf(" by %s", info.Author)
			}
			fmt.Printf(" (%d chapters)\n", info.Chapters)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(booksCmd)
}
