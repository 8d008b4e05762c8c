package scraper

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aluiziolira/bookcrawl/config"
	"github.com/aluiziolira/bookcrawl/fetch"
)

const (
	site        = "http://example.test/"
	homeURL     = site + "index.html"
	travelURL   = site + "catalogue/category/books/travel_2/index.html"
	travelPage2 = site + "catalogue/category/books/travel_2/page-2.html"
	mysteryURL  = site + "catalogue/category/books/mystery_3/index.html"
)

func productURL(slug string) string {
	return site + "catalogue/" + slug + "/index.html"
}

func imageURL(slug string) string {
	return site + "media/" + slug + ".jpg"
}

// fakeSource serves canned pages and images. Queued errors are returned, in
// order, before a URL starts succeeding.
type fakeSource struct {
	pages  map[string]string
	images map[string]*fetch.Payload
	errs   map[string][]error
	calls  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:  make(map[string]string),
		images: make(map[string]*fetch.Payload),
		errs:   make(map[string][]error),
	}
}

func (f *fakeSource) popErr(rawURL string) error {
	queue := f.errs[rawURL]
	if len(queue) == 0 {
		return nil
	}
	f.errs[rawURL] = queue[1:]
	return queue[0]
}

func (f *fakeSource) FetchText(_ context.Context, rawURL string) (string, error) {
	f.calls = append(f.calls, rawURL)
	if err := f.popErr(rawURL); err != nil {
		return "", err
	}
	page, ok := f.pages[rawURL]
	if !ok {
		return "", fmt.Errorf("fetch %s: %w", rawURL, fetch.ErrNotFound{Err: fmt.Errorf("http status 404")})
	}
	return page, nil
}

func (f *fakeSource) FetchBinary(_ context.Context, rawURL string) (*fetch.Payload, error) {
	f.calls = append(f.calls, rawURL)
	if err := f.popErr(rawURL); err != nil {
		return nil, err
	}
	payload, ok := f.images[rawURL]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, fetch.ErrNotFound{Err: fmt.Errorf("http status 404")})
	}
	return payload, nil
}

func (f *fakeSource) count(rawURL string) int {
	n := 0
	for _, c := range f.calls {
		if c == rawURL {
			n++
		}
	}
	return n
}

// addProduct registers a product page and its JPEG image.
func (f *fakeSource) addProduct(slug, upc, category string) {
	f.pages[productURL(slug)] = productPage(slug, upc, category)
	f.images[imageURL(slug)] = &fetch.Payload{
		URL:         imageURL(slug),
		Body:        []byte{0xff, 0xd8, 0xff},
		ContentType: "image/jpeg",
	}
}

// addTravel registers the two page Travel listing X, Y then Z.
func (f *fakeSource) addTravel() {
	f.pages[travelURL] = listingPage("Travel", []string{productURL("x"), productURL("y")}, "page-2.html")
	f.pages[travelPage2] = listingPage("Travel", []string{productURL("z")}, "")
	f.addProduct("x", "upc-x", "Travel")
	f.addProduct("y", "upc-y", "Travel")
	f.addProduct("z", "upc-z", "Travel")
}

func listingPage(name string, products []string, next string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<div class="page-header action"><h1>%s</h1></div>`, name)
	fmt.Fprintf(&b, `<form class="form-horizontal"><strong>%d</strong> results.</form>`, len(products))
	b.WriteString(`<aside><div class="side_categories"><ul class="nav nav-list"><li><a href="/catalogue/category/books_1/index.html">Books</a><ul>`)
	fmt.Fprintf(&b, `<li><a href="%s">Travel</a></li><li><a href="%s">Mystery</a></li>`, travelURL, mysteryURL)
	b.WriteString(`</ul></li></ul></div></aside><section><ol class="row">`)
	for _, p := range products {
		fmt.Fprintf(&b, `<li><article class="product_pod"><h3><a href="%s">%s</a></h3></article></li>`, p, p)
	}
	b.WriteString("</ol>")
	if next != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="%s">next</a></li></ul>`, next)
	}
	b.WriteString("</section></body></html>")
	return b.String()
}

func productPage(slug, upc, category string) string {
	upcRow := ""
	if upc != "" {
		upcRow = fmt.Sprintf(`<tr><th>UPC</th><td>%s</td></tr>`, upc)
	}
	return fmt.Sprintf(`<html><body>
<ul class="breadcrumb"><li><a href="/">Home</a></li><li><a href="/books">Books</a></li><li><a href="/cat">%s</a></li><li class="active">%s</li></ul>
<article class="product_page">
<div id="product_gallery"><div class="item active"><img src="%s"/></div></div>
<div class="product_main"><h1>Book %s</h1>
<p class="instock availability">In stock (3 available)</p>
<p class="star-rating Four"></p></div>
<p>About %s.</p>
<table>%s
<tr><th>Price (excl. tax)</th><td>£10.00</td></tr>
<tr><th>Price (incl. tax)</th><td>£12.00</td></tr>
</table>
</article></body></html>`, category, slug, imageURL(slug), slug, slug, upcRow)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = site
	cfg.OutputDir = t.TempDir()
	cfg.Delay = 0
	cfg.RetryBackoff = 0
	cfg.RetryBackoffMax = 0
	return cfg
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     1,
		BackoffMax:  1,
		Retryable:   fetch.IsRetryable,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(records) == 0 {
		t.Fatalf("%s has no header", path)
	}
	return records[1:]
}

func upcs(rows [][]string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[1])
	}
	return out
}
