package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/bookcrawl/config"
	"github.com/aluiziolira/bookcrawl/fetch"
	"github.com/aluiziolira/bookcrawl/metrics"
	"github.com/aluiziolira/bookcrawl/models"
	"github.com/aluiziolira/bookcrawl/parser"
	"github.com/aluiziolira/bookcrawl/scraper"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// Crawl modes.
const (
	modeAuto     = "auto"
	modeAll      = "all"
	modeCategory = "category"
	modeProduct  = "product"
)

var categoryPathRe = regexp.MustCompile(`/catalogue/category/books/[^/]+/`)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape products into per-category CSV files",
		Long: `Scrape fetches product pages and appends them to CSV files.

The URL may point to the home page (every category is scraped), a category
index page, or a single product page. With --mode auto the kind of page is
guessed from the URL. Without a URL the configured base URL is used.

Examples:
  # Scrape the whole catalog
  bookcrawl scrape

  # Scrape one category into a chosen file
  bookcrawl scrape -o travel.csv https://books.toscrape.com/catalogue/category/books/travel_2/index.html

  # Scrape one product without its image
  bookcrawl scrape --no-images https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScrapeCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Output CSV file for category and product modes (default is derived from the category name)")
	cmd.Flags().String("format", config.FormatCSV, "Output format: csv or dual (csv plus jsonl)")
	cmd.Flags().Bool("no-images", false, "Do not download product images")
	cmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")

	return cmd
}

// addCrawlFlags defines the flags shared by scrape and list.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", modeAuto, "Crawl mode: auto, all, category or product")
	cmd.Flags().StringP("output-dir", "d", "", "Directory receiving CSV files and images")
	cmd.Flags().Duration("delay", 0, "Delay between two requests")
	cmd.Flags().Int("max-attempts", 0, "Attempts per operation on timeouts and connection errors")
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, mode, err := resolveTarget(cmd, cfg, args)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	shutdown := startMetricsServer(cfg.MetricsAddr, m)
	defer shutdown()

	s, err := newScraper(cfg, m)
	if err != nil {
		return err
	}

	slog.Info("starting scrape",
		slog.String("url", target),
		slog.String("mode", mode),
		slog.String("output_dir", cfg.OutputDir),
	)

	ok, err := crawl(ctx, s, mode, target, output)
	printSummary(cmd.OutOrStdout(), s.Summary())
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	if !ok {
		slog.Warn("scrape finished with errors", slog.Int("errors", s.ErrorCount()))
	}
	return nil
}

func newScraper(cfg *config.Config, m *metrics.Metrics, opts ...scraper.Option) (*scraper.Scraper, error) {
	src, err := fetch.NewSource(cfg, m)
	if err != nil {
		return nil, fmt.Errorf("initialising source: %w", err)
	}
	opts = append([]scraper.Option{scraper.WithMetrics(m)}, opts...)
	return scraper.NewScraper(cfg, src, parser.NewBookSite(), opts...)
}

func crawl(ctx context.Context, s *scraper.Scraper, mode, target, output string) (bool, error) {
	switch mode {
	case modeAll:
		if output != "" {
			slog.Warn("--output is ignored when scraping every category")
		}
		return s.RunAll(ctx, target)
	case modeCategory:
		return s.RunCategory(ctx, target, output)
	case modeProduct:
		return s.RunURLs(ctx, []string{target}, output)
	default:
		return false, fmt.Errorf("unknown mode %q", mode)
	}
}

// resolveTarget picks the start URL and the effective crawl mode. A target
// on another host replaces the configured base URL, since the source only
// fetches from the base URL's host.
func resolveTarget(cmd *cobra.Command, cfg *config.Config, args []string) (string, string, error) {
	target := cfg.BaseURL
	if len(args) > 0 {
		target = args[0]
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid url %q", target)
	}
	if base, err := url.Parse(cfg.BaseURL); err != nil || !strings.EqualFold(base.Hostname(), u.Hostname()) {
		origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
		slog.Info("using target host as base url",
			slog.String("base_url", origin),
			slog.String("configured", cfg.BaseURL),
		)
		cfg.BaseURL = origin
	}

	mode, _ := cmd.Flags().GetString("mode")
	switch mode {
	case modeAuto:
		return target, guessMode(u), nil
	case modeAll, modeCategory, modeProduct:
		return target, mode, nil
	default:
		return "", "", fmt.Errorf("unknown mode %q, want auto, all, category or product", mode)
	}
}

// guessMode infers the kind of page from the shape of its URL.
func guessMode(u *url.URL) string {
	p := u.Path
	switch {
	case p == "" || p == "/" || p == "/index.html":
		return modeAll
	case strings.Contains(p, "/books_1/"):
		return modeAll
	case categoryPathRe.MatchString(p):
		return modeCategory
	default:
		return modeProduct
	}
}

func startMetricsServer(addr string, m *metrics.Metrics) func() {
	if addr == "" || m == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(w io.Writer, result models.RunResult) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Scrape complete")
	fmt.Fprintf(w, "  Products:      %d\n", result.Written)
	fmt.Fprintf(w, "  Images:        %d\n", result.ImageCount)
	fmt.Fprintf(w, "  Index pages:   %d\n", result.PageCount)
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %s\n", formatCounts(result.ErrorsByType))
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintln(w, separator)

	if len(result.Categories) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Category", "Output", "Pages", "Written", "Skipped", "Rejected", "Errors", "Status"})
	for _, c := range result.Categories {
		status := "ok"
		switch {
		case c.Err != nil:
			status = "failed: " + c.Err.Error()
		case c.Errors > 0:
			status = "incomplete"
		}
		t.AppendRow(table.Row{c.Name, c.OutputFile, c.Pages, c.Written, c.Skipped, c.Rejected, c.Errors, status})
	}
	t.Render()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
