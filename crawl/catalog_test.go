package crawl

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aluiziolira/bookcrawl/models"
	"github.com/aluiziolira/bookcrawl/parser"
)

func TestOpenCatalog(t *testing.T) {
	f := newFakeFetcher()
	f.pages[base+"index.html"] = listingPage("Travel", []string{"x.html"}, "page-2.html")
	f.pages[base+"page-2.html"] = listingPage("Travel", []string{"y.html"}, "")

	cat, err := OpenCatalog(context.Background(), base+"index.html", f, parser.NewBookSite())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	if cat.Name != "Travel" {
		t.Fatalf("name = %q, want Travel", cat.Name)
	}
	if cat.ProductCount != 1 {
		t.Fatalf("product count = %d, want 1", cat.ProductCount)
	}
	if len(f.calls) != 1 {
		t.Fatalf("opening should fetch only the landing page, got %v", f.calls)
	}

	got := collect(t, cat.Index)
	if !slices.Equal(got, []string{base + "x.html", base + "y.html"}) {
		t.Fatalf("urls = %v", got)
	}
}

func TestCatalogCategoryLinks(t *testing.T) {
	f := newFakeFetcher()
	f.pages[base+"index.html"] = listingPage("Travel", nil, "")

	cat, err := OpenCatalog(context.Background(), base+"index.html", f, parser.NewBookSite())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}

	want := []models.CategoryLink{
		{URL: "http://example.test/catalogue/category/books/travel_2/index.html", Name: "Travel"},
		{URL: "http://example.test/catalogue/category/books/mystery_3/index.html", Name: "Mystery"},
	}
	if got := cat.CategoryLinks(); !slices.Equal(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	if len(f.calls) != 1 {
		t.Fatalf("listing categories should not refetch, calls = %v", f.calls)
	}
}

func TestOpenCatalogPropagatesFetchError(t *testing.T) {
	f := newFakeFetcher()
	boom := errors.New("not found")
	f.fail[base+"index.html"] = boom

	if _, err := OpenCatalog(context.Background(), base+"index.html", f, parser.NewBookSite()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}
