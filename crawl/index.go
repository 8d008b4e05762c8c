package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxPages bounds the number of listing pages walked per seed.
const DefaultMaxPages = 1000

// Stats counts the work done by an Index.
type Stats struct {
	Pages   int
	Emitted int
}

// Option configures an Index.
type Option func(*Index)

// WithMaxPages caps the number of listing pages fetched for one seed.
func WithMaxPages(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxPages = n
		}
	}
}

// WithPageHook registers fn to run after every listing page is fetched.
func WithPageHook(fn func(pageURL string, links int)) Option {
	return func(ix *Index) {
		ix.onPage = fn
	}
}

// Index yields the product URLs of a seed exactly once each.
//
// A URL is marked scraped before it is returned, so an interrupted consumer
// that comes back to the same Index never sees it again. Index is not safe for
// concurrent use.
type Index struct {
	fetcher   Fetcher
	extractor Extractor
	maxPages  int
	onPage    func(pageURL string, links int)

	scraped map[string]bool
	src     source
	stats   Stats
}

// NewIndex returns an Index with an empty source.
func NewIndex(fetcher Fetcher, extractor Extractor, opts ...Option) *Index {
	ix := &Index{
		fetcher:   fetcher,
		extractor: extractor,
		maxPages:  DefaultMaxPages,
		scraped:   make(map[string]bool),
		src:       &listSource{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// SeedList replaces the source with a fixed list of URLs. Nothing is fetched.
func (ix *Index) SeedList(urls []string) {
	ix.src = &listSource{urls: append([]string(nil), urls...)}
}

// SeedIndex replaces the source with the paginated listing starting at indexURL.
func (ix *Index) SeedIndex(indexURL string) {
	ix.src = &pageSource{
		ix:      ix,
		cursor:  indexURL,
		fetched: make(map[string]struct{}),
	}
}

// Mark records whether rawURL has been handled.
func (ix *Index) Mark(rawURL string, scraped bool) {
	ix.scraped[rawURL] = scraped
}

// IsScraped reports whether rawURL has been marked. Unknown URLs are not scraped.
func (ix *Index) IsScraped(rawURL string) bool {
	return ix.scraped[rawURL]
}

// Stats returns the pages fetched and URLs emitted so far.
func (ix *Index) Stats() Stats {
	return ix.stats
}

// Next returns the next URL that has not been scraped yet, marking it first.
// It returns io.EOF once the source is exhausted. A fetch error leaves the
// cursor on the failing page, so a later call retries that page.
func (ix *Index) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		u, err := ix.src.next(ctx)
		if err != nil {
			return "", err
		}
		if ix.scraped[u] {
			continue
		}
		ix.Mark(u, true)
		ix.stats.Emitted++
		return u, nil
	}
}

// All ranges over the remaining URLs. Iteration stops after the first error,
// which is yielded with an empty URL.
func (ix *Index) All(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			u, err := ix.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

type source interface {
	next(ctx context.Context) (string, error)
}

type listSource struct {
	urls []string
	pos  int
}

func (s *listSource) next(context.Context) (string, error) {
	if s.pos >= len(s.urls) {
		return "", io.EOF
	}
	u := s.urls[s.pos]
	s.pos++
	return u, nil
}

// pageSource walks a paginated listing one page per fetch.
type pageSource struct {
	ix      *Index
	cursor  string
	pending []string
	pages   int
	fetched map[string]struct{}
}

func (s *pageSource) next(ctx context.Context) (string, error) {
	for len(s.pending) == 0 {
		if s.cursor == "" {
			return "", io.EOF
		}
		if err := s.load(ctx); err != nil {
			return "", err
		}
	}
	u := s.pending[0]
	s.pending = s.pending[1:]
	return u, nil
}

// load fetches the page under the cursor and advances the cursor only once
// the page has been parsed.
func (s *pageSource) load(ctx context.Context) error {
	pageURL := s.cursor
	if _, ok := s.fetched[pageURL]; ok {
		slog.Warn("pagination cycle detected, stopping", slog.String("url", pageURL))
		s.cursor = ""
		return nil
	}
	if s.pages >= s.ix.maxPages {
		slog.Warn("index page limit reached, stopping",
			slog.String("url", pageURL),
			slog.Int("max_pages", s.ix.maxPages),
		)
		s.cursor = ""
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse index url %q: %w", pageURL, err)
	}
	text, err := s.ix.fetcher.FetchText(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("read index page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("parse index page %s: %w", pageURL, err)
	}

	links := s.ix.extractor.ProductLinks(doc, base)
	s.pending = links
	s.cursor = s.ix.extractor.NextPageURL(doc, base)
	s.fetched[pageURL] = struct{}{}
	s.pages++
	s.ix.stats.Pages++

	slog.Debug("index page read",
		slog.String("url", pageURL),
		slog.Int("links", len(links)),
		slog.String("next", s.cursor),
	)
	if s.ix.onPage != nil {
		s.ix.onPage(pageURL, len(links))
	}
	return nil
}
