package parser

import (
	"testing"

	"github.com/aluiziolira/bookcrawl/models"
	"github.com/stretchr/testify/assert"
)

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *models.Product
		wantErr bool
	}{
		{
			name:    "valid product",
			product: &models.Product{UPC: "a897fe39b1053632", Title: "Test Book"},
			wantErr: false,
		},
		{
			name:    "missing upc",
			product: &models.Product{Title: "Test Book", PriceInclTax: 10},
			wantErr: true,
		},
		{
			name:    "blank upc",
			product: &models.Product{UPC: "   ", Title: "Test Book"},
			wantErr: true,
		},
		{
			name:    "nil product",
			product: nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateProduct() error = %v", err)
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "with currency symbol", input: "£51.77", expected: "51.77"},
		{name: "mis-decoded symbol", input: "Â£51.77", expected: "51.77"},
		{name: "with whitespace", input: "  £10.50  ", expected: "10.50"},
		{name: "already clean", input: "25.99", expected: "25.99"},
		{name: "multiple symbols", input: "£ 99.99 £", expected: "99.99"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePrice(tt.input))
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{input: "£51.77", expected: 51.77},
		{input: "£1,024.50", expected: 1024.50},
		{input: "-3.00", expected: 0},
		{input: "free", expected: 0},
		{input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ParsePrice(tt.input), 1e-9)
		})
	}
}

func TestParseStock(t *testing.T) {
	assert.Equal(t, 22, ParseStock("In stock (22 available)"))
	assert.Equal(t, 0, ParseStock("Out of stock"))
	assert.Equal(t, 0, ParseStock(""))
}

func TestRatingToNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{input: "Zero", expected: 0},
		{input: "One", expected: 1},
		{input: "Two", expected: 2},
		{input: "Three", expected: 3},
		{input: "Four", expected: 4},
		{input: "Five", expected: 5},
		{input: "three", expected: 3},
		{input: "Invalid", expected: 0},
		{input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, RatingToNumeric(tt.input))
		})
	}
}

func TestRatingFromClass(t *testing.T) {
	assert.Equal(t, 3, RatingFromClass("star-rating Three"))
	assert.Equal(t, 5, RatingFromClass("Five star-rating"))
	assert.Equal(t, 0, RatingFromClass("star-rating"))
	assert.Equal(t, 0, RatingFromClass(""))
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "A Light in the Attic", NormalizeSpace("  A Light\n\tin the   Attic "))
	assert.Equal(t, "", NormalizeSpace(" \n "))
}
