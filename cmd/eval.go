package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/evalcmd"
	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
)

func newEvalCmd() *cobra.Command {
	var opts evalcmd.Options

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure extraction accuracy on a labelled spine set",
		Long: `Runs the configured extraction backend over a labelled set of spine crops and
compares each reading with its title and author.

The dataset is a .jsonl or .parquet file with image_path, title and author
columns. Relative image paths are resolved against the dataset's directory.
Results are written as YAML under the output directory.`,
		Example: `  # Evaluate 10 spines with the default backend
  shelfscanner eval --dataset ./spines/labels.jsonl

  # Evaluate everything with OpenAI, 4 at a time
  BOOKSHELF_EXTRACT_BACKEND=openai shelfscanner eval --dataset labels.parquet --sample -1 --concurrency 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.DatasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", opts.DatasetPath)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			extractor, err := extraction.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("extractor unavailable: %s", extraction.DescribeError(err))
			}

			opts.Provider = cfg.Extract.Backend
			opts.Model = cfg.ExtractModel()
			opts.Temperature = cfg.Extract.Temperature

			_, err = evalcmd.Run(cmd.Context(), extractor, opts, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&opts.DatasetPath, "dataset", "", "Path to the labelled spine dataset (.jsonl or .parquet)")
	cmd.Flags().IntVar(&opts.Sample, "sample", 10, "Number of spines to evaluate (-1 for all)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "evals", "Directory for the YAML results")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 1, "Spines extracted in parallel")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
