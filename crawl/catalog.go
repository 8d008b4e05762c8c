package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/bookcrawl/models"
)

// Catalog is one category: its landing page metadata and an Index seeded
// with its listing.
type Catalog struct {
	URL          string
	Name         string
	ProductCount int
	Index        *Index

	base      *url.URL
	doc       *goquery.Document
	extractor Extractor
}

// OpenCatalog fetches and parses the landing page at categoryURL once. The
// listing itself is walked lazily through the returned catalog's Index.
func OpenCatalog(ctx context.Context, categoryURL string, fetcher Fetcher, extractor Extractor, opts ...Option) (*Catalog, error) {
	base, err := url.Parse(categoryURL)
	if err != nil {
		return nil, fmt.Errorf("parse category url %q: %w", categoryURL, err)
	}
	text, err := fetcher.FetchText(ctx, categoryURL)
	if err != nil {
		return nil, fmt.Errorf("read category page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse category page %s: %w", categoryURL, err)
	}

	info := extractor.CategoryInfo(doc)
	ix := NewIndex(fetcher, extractor, opts...)
	ix.SeedIndex(categoryURL)

	return &Catalog{
		URL:          categoryURL,
		Name:         info.Name,
		ProductCount: info.ProductCount,
		Index:        ix,
		base:         base,
		doc:          doc,
		extractor:    extractor,
	}, nil
}

// CategoryLinks lists every category of the landing page's navigation menu.
func (c *Catalog) CategoryLinks() []models.CategoryLink {
	return c.extractor.CategoryLinks(c.doc, c.base)
}
