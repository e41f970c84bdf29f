package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/shelfscanner/internal/capture"
	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
)

func newScanCmd() *cobra.Command {
	opts := capture.DefaultOptions()
	var format string
	var detectOnly bool

	cmd := &cobra.Command{
		Use:   "scan IMAGE",
		Short: "Scan one shelf photo from a file or URL",
		Long: `Runs the capture pipeline on a single shelf photo and prints the result.

Spines are detected, ordered top-to-bottom and left-to-right, read by the
extraction backend, deduplicated and looked up in Google Books.`,
		Example: `  # Full capture as JSON
  shelfscanner scan shelf.jpg

  # Boxes only, as YAML
  shelfscanner scan shelf.jpg --detect-only --format yaml

  # Remote photo with more lookup results per spine
  shelfscanner scan https://example.org/shelf.jpg --max-lookup-results 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			img, err := images.NewFetcher().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			books, cleanup, err := newCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			scanner := newScanService(cfg, books)

			var result any
			if detectOnly {
				result, err = scanner.Detect(cmd.Context(), img, opts)
			} else {
				result, err = scanner.Capture(cmd.Context(), img, opts)
			}
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), format, result)
		},
	}

	cmd.Flags().IntVar(&opts.MinArea, "min-area", opts.MinArea, "Minimum spine box area in pixels")
	cmd.Flags().IntVar(&opts.MaxDetections, "max-detections", opts.MaxDetections, "Maximum number of spines to keep")
	cmd.Flags().IntVar(&opts.MaxLookupResults, "max-lookup-results", opts.MaxLookupResults, "Google Books results per spine (1-10)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json or yaml)")
	cmd.Flags().BoolVar(&detectOnly, "detect-only", false, "Only detect spines, skip extraction and lookup")

	return cmd
}
