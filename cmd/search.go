package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
)

func newSearchCmd() *cobra.Command {
	var maxResults int
	var format string

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search Google Books",
		Example: `  shelfscanner search 'intitle:"Dune" inauthor:"Herbert"'
  shelfscanner search walden --max-results 5 --format yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			books, cleanup, err := newCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := books.Search(cmd.Context(), strings.Join(args, " "), max(1, min(40, maxResults)))
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, result)
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 20, "Number of results (1-40)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json or yaml)")

	return cmd
}
