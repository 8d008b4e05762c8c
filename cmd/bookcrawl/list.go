package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/bookcrawl/scraper"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [url]",
		Short: "List the URLs a scrape would visit",
		Long: `List walks categories and listing pages like scrape does, but never fetches
product pages or writes files. Each visited URL is printed with its kind:
all, category or product.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runListCmd,
	}
	addCrawlFlags(cmd)
	return cmd
}

func runListCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, mode, err := resolveTarget(cmd, cfg, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	hook := func(rawURL string, step scraper.Step) {
		fmt.Fprintf(out, "%s\t%s\n", step, rawURL)
	}
	s, err := newScraper(cfg, nil, scraper.WithContents(false), scraper.WithHook(hook))
	if err != nil {
		return err
	}

	ok, err := crawl(ctx, s, mode, target, "")
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if !ok {
		slog.Warn("listing finished with errors", slog.Int("errors", s.ErrorCount()))
	}
	return nil
}
