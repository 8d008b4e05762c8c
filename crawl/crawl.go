// Package crawl walks paginated catalog listings and turns them into a
// de-duplicated stream of product URLs.
package crawl

import (
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/bookcrawl/models"
)

// Fetcher retrieves the text of a page.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// Extractor reads site-specific markup. Implementations resolve every
// returned URL against base.
type Extractor interface {
	CategoryInfo(doc *goquery.Document) models.CategoryInfo
	CategoryLinks(doc *goquery.Document, base *url.URL) []models.CategoryLink
	ProductLinks(doc *goquery.Document, base *url.URL) []string
	NextPageURL(doc *goquery.Document, base *url.URL) string
	Product(doc *goquery.Document, pageURL string) (*models.Product, bool)
}
