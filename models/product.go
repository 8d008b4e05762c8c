// Package models defines data structures for the scraper.
package models

import "time"

// Product is one book record extracted from a product page.
//
// A product is usable only when UPC is non-empty; every other field falls
// back to its zero value when the page cannot be parsed.
type Product struct {
	PageURL         string  `csv:"product_page_url" json:"product_page_url"`
	UPC             string  `csv:"universal_product_code" json:"universal_product_code"`
	Title           string  `csv:"title" json:"title"`
	PriceInclTax    float64 `csv:"price_including_tax" json:"price_including_tax"`
	PriceExclTax    float64 `csv:"price_excluding_tax" json:"price_excluding_tax"`
	NumberAvailable int     `csv:"number_available" json:"number_available"`
	Description     string  `csv:"product_description" json:"product_description"`
	Category        string  `csv:"category" json:"category"`
	ReviewRating    int     `csv:"review_rating" json:"review_rating"`
	ImageURL        string  `csv:"image_url" json:"image_url"`
}

// Valid reports whether the product carries a unique product code.
func (p *Product) Valid() bool {
	return p != nil && p.UPC != ""
}

// CategoryInfo is the metadata read from a category landing page.
type CategoryInfo struct {
	Name         string
	ProductCount int
}

// CategoryLink is a sibling category found in the navigation menu.
type CategoryLink struct {
	URL  string
	Name string
}

// CategoryResult summarises one category run.
type CategoryResult struct {
	URL        string
	Name       string
	OutputFile string
	Pages      int
	Written    int
	Skipped    int
	// Rejected counts records the output refused, such as repeated codes.
	Rejected int
	Errors   int
	Err      error
}

// OK reports whether the category completed without errors.
func (r CategoryResult) OK() bool {
	return r.Err == nil && r.Errors == 0
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	Categories   []CategoryResult
	StartTime    time.Time
	EndTime      time.Time
	Written      int
	ErrorCount   int
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
	ImageCount   int
}
