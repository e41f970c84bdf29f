package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
)

func newExtractCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "extract PATH",
		Short: "Read titles from spine crops",
		Long: `Runs the extraction backend over a spine image, or over every image directly
inside a directory in name order, and prints the indexed results as YAML.`,
		Example: `  # One crop
  shelfscanner extract spine.jpg

  # First 5 crops of a directory with a different backend
  BOOKSHELF_EXTRACT_BACKEND=openai shelfscanner extract ./crops --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			paths, err := extraction.CollectImagePaths(args[0])
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no images found in %s", args[0])
			}
			if limit > 0 && len(paths) > limit {
				paths = paths[:limit]
			}

			extractor, err := extraction.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("extractor unavailable: %s", extraction.DescribeError(err))
			}

			slog.Info("Extracting spines", "count", len(paths), "backend", cfg.Extract.Backend, "model", cfg.ExtractModel())
			results := extractor.ExtractFromPaths(cmd.Context(), paths)

			return writeOutput(cmd.OutOrStdout(), "yaml", results)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of images to process (0 for all)")

	return cmd
}
