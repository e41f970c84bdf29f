package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var logLevel, logFormat string

	cmd := &cobra.Command{
		Use:   "shelfscanner",
		Short: "Bookshelf spine scanner with vision-model title extraction",
		Long: `Shelfscanner finds book spines in a shelf photo, reads each spine with a
vision model and looks the titles up in Google Books.

It runs as an HTTP service for capture clients or directly from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return setupLogging(cmd, logLevel, logFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error); BOOKSHELF_LOG_LEVEL when unset")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json); BOOKSHELF_LOG_FORMAT when unset")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}

// setupLogging installs the default slog logger. Flags win over the environment.
func setupLogging(cmd *cobra.Command, level, format string) error {
	if !cmd.Flags().Changed("log-level") {
		if env := os.Getenv("BOOKSHELF_LOG_LEVEL"); env != "" {
			level = env
		}
	}
	if !cmd.Flags().Changed("log-format") {
		if env := os.Getenv("BOOKSHELF_LOG_FORMAT"); env != "" {
			format = env
		}
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q (supported: text, json)", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
