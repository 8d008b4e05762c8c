package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/bookcrawl/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the bookcrawl root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookcrawl",
		Short: "Crawl a books catalog into per-category CSV files",
		Long: `bookcrawl walks the paginated listings of a books catalog, one request at
a time, and appends every product to the CSV file of its category. Images are
saved next to the CSV files. Re-running against the same output directory
resumes where the previous run stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger, _ := newLogger(os.Stderr, verbose)
			slog.SetDefault(logger)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default is $XDG_CONFIG_HOME/bookcrawl/config.yaml)")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves defaults, the config file and the environment, then
// the flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies explicitly set crawl flags into cfg. Flags a command
// does not define are ignored.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	var err error
	if changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return err
		}
	}
	if changed("format") {
		if cfg.OutputFormat, err = flags.GetString("format"); err != nil {
			return err
		}
	}
	if changed("delay") {
		if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if changed("max-attempts") {
		if cfg.MaxAttempts, err = flags.GetInt("max-attempts"); err != nil {
			return err
		}
	}
	if changed("no-images") {
		noImages, err := flags.GetBool("no-images")
		if err != nil {
			return err
		}
		cfg.DownloadImages = !noImages
	}
	if changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(w *os.File, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
