// Package scraper drives whole-catalog, category and product crawls with
// bounded retries and per-scope failure containment.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/bookcrawl/config"
	"github.com/aluiziolira/bookcrawl/crawl"
	"github.com/aluiziolira/bookcrawl/fetch"
	"github.com/aluiziolira/bookcrawl/metrics"
	"github.com/aluiziolira/bookcrawl/models"
	"github.com/aluiziolira/bookcrawl/pipeline"
)

// ErrNotProductPage is returned when a fetched page carries no product.
var ErrNotProductPage = errors.New("not a product page")

// Step tags the kind of URL handed to a Hook.
type Step string

const (
	StepAll      Step = "all"
	StepCategory Step = "category"
	StepProduct  Step = "product"
	StepImage    Step = "image"
)

// Hook observes every URL the scraper touches.
type Hook func(rawURL string, step Step)

// Source is the remote side of a crawl.
type Source interface {
	crawl.Fetcher
	FetchBinary(ctx context.Context, rawURL string) (*fetch.Payload, error)
}

// Sink receives validated product records.
type Sink interface {
	Append(p *models.Product) error
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithHook registers an observation hook.
func WithHook(h Hook) Option {
	return func(s *Scraper) {
		s.hook = h
	}
}

// WithContents toggles content scraping. When disabled, products are only
// reported to the hook and nothing is fetched or written for them.
func WithContents(enabled bool) Option {
	return func(s *Scraper) {
		s.contents = enabled
	}
}

// WithRetryPolicy replaces the policy derived from the configuration.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scraper) {
		s.retry = p
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// Scraper runs one crawl. It is not safe for concurrent use; construct one
// per run.
type Scraper struct {
	cfg       *config.Config
	source    *countingSource
	extractor crawl.Extractor
	metrics   *metrics.Metrics
	retry     RetryPolicy
	hook      Hook
	contents  bool

	catalogs map[string]*crawl.Catalog
	results  []models.CategoryResult

	start        time.Time
	errorCount   int
	errorsByType map[string]int
	retryCount   int
	pageCount    int
	written      int
	imageCount   int
}

// NewScraper builds a scraper reading from source through extractor.
func NewScraper(cfg *config.Config, source Source, extractor crawl.Extractor, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New("scraper: nil config")
	}
	if source == nil || extractor == nil {
		return nil, errors.New("scraper: source and extractor are required")
	}

	s := &Scraper{
		cfg:          cfg,
		source:       &countingSource{Source: source},
		extractor:    extractor,
		retry:        NewRetryPolicy(cfg),
		contents:     true,
		catalogs:     make(map[string]*crawl.Catalog),
		errorsByType: make(map[string]int),
		start:        time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	onRetry := s.retry.OnRetry
	s.retry.OnRetry = func(attempt int, err error) {
		s.retryCount++
		s.metrics.IncRetries()
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return s, nil
}

// RunAll scrapes every category listed in the navigation of the page at
// homeURL. A failing category is logged and counted; the others still run.
// It reports whether the whole run finished without errors.
func (s *Scraper) RunAll(ctx context.Context, homeURL string) (bool, error) {
	s.notify(homeURL, StepAll)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		home, err := s.catalog(ctx, homeURL)
		if err != nil {
			return err
		}

		links := home.CategoryLinks()
		slog.Info("scrape all categories",
			slog.String("url", homeURL),
			slog.Int("categories", len(links)),
		)
		for _, link := range links {
			output := filepath.Join(s.cfg.OutputDir, OutputName(link.Name, link.URL, ".csv"))
			if _, err := s.RunCategory(ctx, link.URL, output); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				slog.Warn("category failed, skipping to next",
					slog.String("url", link.URL),
					slog.String("category", link.Name),
					slog.Any("error", err),
				)
				s.countError(err)
				s.metrics.IncCategoryFailed()
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("scrape all from %s: %w", homeURL, err)
	}
	return s.errorCount == 0, nil
}

// RunCategory scrapes the category whose listing starts at categoryURL into
// outputPath, or into a file named after the category when outputPath is
// empty. Products already present in the output file are skipped. It
// reports whether every product of the category succeeded.
func (s *Scraper) RunCategory(ctx context.Context, categoryURL, outputPath string) (bool, error) {
	res := models.CategoryResult{URL: categoryURL, OutputFile: outputPath}
	s.notify(categoryURL, StepCategory)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		cat, err := s.catalog(ctx, categoryURL)
		if err != nil {
			return err
		}
		res.Name = cat.Name
		if res.OutputFile == "" {
			res.OutputFile = filepath.Join(s.cfg.OutputDir, OutputName(cat.Name, categoryURL, ".csv"))
		}
		imageDir := filepath.Join(s.cfg.OutputDir, "images", OutputName(cat.Name, categoryURL, ""))

		slog.Info("scrape category",
			slog.String("category", cat.Name),
			slog.String("output", res.OutputFile),
		)
		return s.drain(ctx, cat.Index, &res, imageDir)
	})
	if err != nil {
		res.Err = err
	}
	s.results = append(s.results, res)
	return err == nil && res.Errors == 0, err
}

// RunURLs scrapes an explicit list of product URLs into outputPath with the
// same resume behaviour as RunCategory.
func (s *Scraper) RunURLs(ctx context.Context, urls []string, outputPath string) (bool, error) {
	if outputPath == "" {
		outputPath = filepath.Join(s.cfg.OutputDir, "products.csv")
	}
	ix := crawl.NewIndex(s.source, s.extractor)
	ix.SeedList(urls)

	res := models.CategoryResult{OutputFile: outputPath}
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.drain(ctx, ix, &res, filepath.Join(s.cfg.OutputDir, "images"))
	})
	if err != nil {
		res.Err = err
	}
	s.results = append(s.results, res)
	return err == nil && res.Errors == 0, err
}

// RunProduct scrapes one product page into sink and saves its image under
// imageDir. Invalid or duplicate records are skipped and reported as false
// without an error. Image failures never fail the product.
func (s *Scraper) RunProduct(ctx context.Context, productURL string, sink Sink, imageDir string) (bool, error) {
	s.notify(productURL, StepProduct)
	var ok bool
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = s.scrapeProduct(ctx, productURL, sink, imageDir)
		return err
	})
	return ok, err
}

func (s *Scraper) scrapeProduct(ctx context.Context, productURL string, sink Sink, imageDir string) (bool, error) {
	slog.Debug("scrape product", slog.String("url", productURL))
	if !s.contents {
		return true, nil
	}
	if sink == nil {
		return false, errors.New("no sink for product records")
	}

	text, err := s.source.FetchText(ctx, productURL)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return false, fmt.Errorf("parse product page %s: %w", productURL, err)
	}
	product, found := s.extractor.Product(doc, productURL)
	if !found {
		return false, fmt.Errorf("%s: %w", productURL, ErrNotProductPage)
	}
	product.PageURL = productURL
	if !product.Valid() {
		slog.Warn("skipping record without product code", slog.String("url", productURL))
		return false, nil
	}

	if err := sink.Append(product); err != nil {
		if errors.Is(err, pipeline.ErrInvalidRecord) || errors.Is(err, pipeline.ErrDuplicateRecord) {
			slog.Warn("skipping record",
				slog.String("url", productURL),
				slog.Any("reason", err),
			)
			return false, nil
		}
		return false, err
	}
	s.written++
	s.metrics.IncProducts()

	s.saveImage(ctx, product, imageDir)
	return true, nil
}

// drain feeds every pending URL of ix to RunProduct, writing into
// res.OutputFile after replaying it into ix.
func (s *Scraper) drain(ctx context.Context, ix *crawl.Index, res *models.CategoryResult, imageDir string) error {
	replayed, err := pipeline.ReadSourceURLs(res.OutputFile)
	if err != nil {
		return fmt.Errorf("replay %s: %w", res.OutputFile, err)
	}
	for _, u := range replayed {
		if !ix.IsScraped(u) {
			ix.Mark(u, true)
			res.Skipped++
		}
	}
	if len(replayed) > 0 {
		slog.Info("resuming from existing output",
			slog.String("output", res.OutputFile),
			slog.Int("already_scraped", len(replayed)),
		)
	}

	var sink *pipeline.Pipeline
	if s.contents {
		sink, err = s.openSink(res.OutputFile)
		if err != nil {
			return err
		}
		defer func() {
			res.Rejected += rejectedRecords(sink.GetMetrics())
			if err := sink.Close(); err != nil {
				slog.Error("close output", slog.String("output", res.OutputFile), slog.Any("error", err))
			}
		}()
	}
	defer func() {
		res.Pages = ix.Stats().Pages
	}()

	for {
		productURL, err := ix.Next(ctx)
		if errors.Is(err, io.EOF) {
			if sink != nil && sink.Processed() > 0 {
				if err := sink.Validate(); err != nil {
					return fmt.Errorf("check output %s: %w", res.OutputFile, err)
				}
			}
			return nil
		}
		if err != nil {
			return err
		}

		var target Sink
		if sink != nil {
			target = sink
		}
		ok, err := s.RunProduct(ctx, productURL, target, imageDir)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			slog.Warn("product failed, skipping record",
				slog.String("url", productURL),
				slog.String("error_type", fetch.ErrorTypeLabel(err)),
				slog.Any("error", err),
			)
			s.countError(err)
			res.Errors++
		case !ok:
			res.Errors++
		case s.contents:
			res.Written++
		}
	}
}

func (s *Scraper) openSink(outputPath string) (*pipeline.Pipeline, error) {
	var (
		writer pipeline.OutputWriter
		err    error
	)
	switch s.cfg.OutputFormat {
	case config.FormatDual:
		writer, err = pipeline.NewDualWriter(outputPath, pipeline.JSONPathFor(outputPath))
	default:
		writer, err = pipeline.NewCSVWriter(outputPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", outputPath, err)
	}

	p, err := pipeline.NewPipeline(writer, s.cfg.DedupeMaxSize)
	if err != nil {
		writer.Close()
		return nil, err
	}
	return p, nil
}

// rejectedRecords totals the records a pipeline refused to write.
func rejectedRecords(m map[string]interface{}) int {
	counts, _ := m["validation_errors"].(map[string]int)
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func (s *Scraper) saveImage(ctx context.Context, product *models.Product, imageDir string) {
	if !s.cfg.DownloadImages || product.ImageURL == "" {
		return
	}
	if imageDir == "" {
		imageDir = filepath.Join(s.cfg.OutputDir, "images")
	}

	s.notify(product.ImageURL, StepImage)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		payload, err := s.source.FetchBinary(ctx, product.ImageURL)
		if err != nil {
			return err
		}
		_, subtype := payload.MediaType()
		if !pipeline.SupportedImage(subtype) {
			slog.Debug("ignoring image",
				slog.String("url", product.ImageURL),
				slog.String("content_type", payload.ContentType),
			)
			return nil
		}
		saved, err := pipeline.SaveImage(imageDir, product.UPC, subtype, payload.Body)
		if err != nil {
			return err
		}
		s.imageCount++
		s.metrics.IncImages()
		slog.Debug("image saved", slog.String("path", saved))
		return nil
	})
	if err != nil {
		slog.Warn("image download failed",
			slog.String("url", product.ImageURL),
			slog.String("upc", product.UPC),
			slog.Any("error", err),
		)
	}
}

func (s *Scraper) catalog(ctx context.Context, categoryURL string) (*crawl.Catalog, error) {
	if cat, ok := s.catalogs[categoryURL]; ok {
		return cat, nil
	}
	cat, err := crawl.OpenCatalog(ctx, categoryURL, s.source, s.extractor,
		crawl.WithMaxPages(s.cfg.MaxIndexPages),
		crawl.WithPageHook(func(string, int) {
			s.pageCount++
			s.metrics.IncPages()
		}),
	)
	if err != nil {
		return nil, err
	}
	s.catalogs[categoryURL] = cat
	return cat, nil
}

func (s *Scraper) notify(rawURL string, step Step) {
	if s.hook != nil {
		s.hook(rawURL, step)
	}
}

func (s *Scraper) countError(err error) {
	s.errorCount++
	s.errorsByType[fetch.ErrorTypeLabel(err)]++
}

// ErrorCount returns the errors counted so far in this run.
func (s *Scraper) ErrorCount() int {
	return s.errorCount
}

// Results returns one entry per category or URL list processed.
func (s *Scraper) Results() []models.CategoryResult {
	out := make([]models.CategoryResult, len(s.results))
	copy(out, s.results)
	return out
}

// Summary aggregates the run so far.
func (s *Scraper) Summary() models.RunResult {
	byType := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		byType[k] = v
	}
	return models.RunResult{
		Categories:   s.Results(),
		StartTime:    s.start,
		EndTime:      time.Now(),
		Written:      s.written,
		ErrorCount:   s.errorCount,
		ErrorsByType: byType,
		RetryCount:   s.retryCount,
		RequestCount: s.source.requests,
		PageCount:    s.pageCount,
		ImageCount:   s.imageCount,
	}
}

// OutputName derives a file base name from a category name. Leading and
// trailing spaces and slashes are dropped, and runs of whitespace or slashes
// become "_". An empty name falls back to the last path segment of rawURL.
func OutputName(name, rawURL, suffix string) string {
	if strings.Trim(name, " /") == "" {
		name = nameFromURL(rawURL)
	}
	return pipeline.SafeName(name, suffix)
}

func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "category"
	}
	p := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(p, ".html") {
		p = path.Dir(p)
	}
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return "category"
	}
	return base
}

type countingSource struct {
	Source
	requests int
}

func (c *countingSource) FetchText(ctx context.Context, rawURL string) (string, error) {
	c.requests++
	return c.Source.FetchText(ctx, rawURL)
}

func (c *countingSource) FetchBinary(ctx context.Context, rawURL string) (*fetch.Payload, error) {
	c.requests++
	return c.Source.FetchBinary(ctx, rawURL)
}
