// Package parser extracts catalog structure and product records from
// books.toscrape.com pages and normalises the raw field text.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/bookcrawl/models"
)

// ValidateProduct ensures the scraper captured the unique product code.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.UPC) == "" {
		return fmt.Errorf("product missing universal product code (%s)", p.PageURL)
	}
	return nil
}

// NormalizeSpace collapses every run of whitespace to a single space.
func NormalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizePrice removes the currency symbol and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "Â£", "")
	price = strings.ReplaceAll(price, "£", "")
	return strings.TrimSpace(price)
}

// ParsePrice converts a price label to a non-negative amount. Anything
// unparseable becomes 0.
func ParsePrice(price string) float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(NormalizePrice(price), ",", ""), 64)
	if err != nil || value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

var stockRe = regexp.MustCompile(`(\d+)\s+available`)

// ParseStock reads the number of copies from an availability label such as
// "In stock (22 available)". Missing or invalid counts become 0.
func ParseStock(text string) int {
	m := stockRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RatingToNumeric converts the textual rating to a numeric scale.
func RatingToNumeric(rating string) int {
	switch strings.ToLower(strings.TrimSpace(rating)) {
	case "one":
		return 1
	case "two":
		return 2
	case "three":
		return 3
	case "four":
		return 4
	case "five":
		return 5
	default:
		return 0
	}
}

// RatingFromClass reads the rating word out of a class attribute such as
// "star-rating Three". Unknown classes rate 0.
func RatingFromClass(class string) int {
	for _, name := range strings.Fields(class) {
		if n := RatingToNumeric(name); n > 0 {
			return n
		}
	}
	return 0
}
