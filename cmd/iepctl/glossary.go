package main

import (
	"fmt"
	"sort"

	"iep-rehearsal/internal/reference"

	"github.com/spf13/cobra"
)

func newGlossaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "glossary [query]",
		Short: "Search the IEP glossary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := reference.Load()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			terms := lib.Glossary(query)
			if len(terms) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No terms match %q.\n", query)
				return nil
			}

			grouped := reference.Letters(terms)
			letters := make([]string, 0, len(grouped))
			for l := range grouped {
				letters = append(letters, l)
			}
			sort.Strings(letters)
			for _, l := range letters {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", l)
				for _, t := range grouped[l] {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", t.Term, t.Definition)
				}
			}
			return nil
		},
	}
}
