// Package validate checks a data directory produced by a crawl against the
// expected product count of each category.
package validate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/aluiziolira/bookcrawl/pipeline"
)

// ErrBadSpecs is returned when the expectations file is malformed.
var ErrBadSpecs = errors.New("malformed category specs")

// Expectation is the product count expected for one category.
type Expectation struct {
	Category     string
	ProductCount int
}

// Report accumulates what was checked and every problem found.
type Report struct {
	Categories int
	Products   int
	Images     int

	ExpectedCategories int
	ExpectedProducts   int

	Errors []string
}

// OK reports whether no problem was found.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn("validation error", slog.String("detail", msg))
	r.Errors = append(r.Errors, msg)
}

// Validator inspects one data directory.
type Validator struct {
	dataDir string
}

// New returns a validator for dataDir, which must be an existing directory.
func New(dataDir string) (*Validator, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dataDir)
	}
	return &Validator{dataDir: dataDir}, nil
}

// LoadSpecs reads a CSV with exactly the columns category and product_count.
func LoadSpecs(path string) ([]Expectation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open specs: %w", err)
	}
	defer f.Close()
	return ReadSpecs(f)
}

// ReadSpecs parses expectations from r, keeping file order.
func ReadSpecs(r io.Reader) ([]Expectation, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrBadSpecs, err)
	}
	if !slices.Equal(header, []string{"category", "product_count"}) {
		return nil, fmt.Errorf("%w: want columns category,product_count, got %s", ErrBadSpecs, strings.Join(header, ","))
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSpecs, err)
	}
	specs := make([]Expectation, 0, len(records))
	for i, rec := range records {
		n, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: line %d: invalid product_count %q", ErrBadSpecs, i+2, rec[1])
		}
		specs = append(specs, Expectation{Category: rec[0], ProductCount: n})
	}
	return specs, nil
}

// Select keeps the expectations of the named categories, in the given order.
// An unknown name is an error.
func Select(specs []Expectation, names []string) ([]Expectation, error) {
	if len(names) == 0 {
		return specs, nil
	}
	byName := make(map[string]Expectation, len(specs))
	for _, s := range specs {
		byName[s.Category] = s
	}
	out := make([]Expectation, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("category %q is not listed in the specs", name)
		}
		out = append(out, s)
	}
	return out, nil
}

// Validate checks every expected category.
func (v *Validator) Validate(specs []Expectation) *Report {
	r := &Report{}
	for _, s := range specs {
		v.ValidateCategory(r, s)
	}
	return r
}

// ValidateCategory checks one category's CSV file, its rows and the image of
// every product, adding findings to r.
func (v *Validator) ValidateCategory(r *Report, exp Expectation) {
	slog.Info("validating category", slog.String("category", exp.Category))
	r.Categories++
	r.ExpectedCategories++
	r.ExpectedProducts += exp.ProductCount

	csvPath := filepath.Join(v.dataDir, pipeline.SafeName(exp.Category, ".csv"))
	imageDir := filepath.Join(v.dataDir, "images", pipeline.SafeName(exp.Category, ""))

	f, err := os.Open(csvPath)
	if err != nil {
		r.fail("missing CSV file for category %s, expected %s", exp.Category, csvPath)
		return
	}
	defer f.Close()

	checkImages := true
	if info, err := os.Stat(imageDir); err != nil || !info.IsDir() {
		r.fail("missing images directory for category %s, expected %s", exp.Category, imageDir)
		checkImages = false
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		r.fail("empty CSV file %s", csvPath)
		return
	}
	if err != nil {
		r.fail("malformed CSV file %s: %v", csvPath, err)
		return
	}
	if !v.checkHeader(r, csvPath, header) {
		return
	}

	rows := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fail("malformed CSV file %s: %v", csvPath, err)
			return
		}
		rows++
		v.checkRow(r, exp.Category, csvPath, imageDir, rows, header, row, checkImages)
	}

	if rows != exp.ProductCount {
		r.fail("wrong product count for category %s in %s: expected %d, found %d",
			exp.Category, csvPath, exp.ProductCount, rows)
	}
}

func (v *Validator) checkHeader(r *Report, csvPath string, header []string) bool {
	var missing, unexpected []string
	for _, col := range pipeline.Columns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	for _, col := range header {
		if !slices.Contains(pipeline.Columns, col) {
			unexpected = append(unexpected, col)
		}
	}
	if len(missing) > 0 {
		r.fail("missing fields in CSV file %s: %s", csvPath, strings.Join(missing, ", "))
	}
	if len(unexpected) > 0 {
		r.fail("unexpected fields in CSV file %s: %s", csvPath, strings.Join(unexpected, ", "))
	}
	return len(missing) == 0 && len(unexpected) == 0
}

func (v *Validator) checkRow(r *Report, category, csvPath, imageDir string, n int, header, row []string, checkImages bool) {
	r.Products++
	if len(row) < len(header) {
		for _, col := range header[len(row):] {
			r.fail("field not set for product at row #%d: %s (in category %s, %s)", n, col, category, csvPath)
		}
	}
	if len(row) > len(header) {
		r.fail("malformed record at row #%d (in category %s, %s)", n, category, csvPath)
	}

	code := ""
	if i := slices.Index(header, "universal_product_code"); i >= 0 && i < len(row) {
		code = strings.TrimSpace(row[i])
	}
	if !checkImages || code == "" {
		return
	}

	r.Images++
	matches, _ := filepath.Glob(filepath.Join(imageDir, pipeline.SafeName(code, ".*")))
	for _, m := range matches {
		ext := strings.TrimPrefix(filepath.Ext(m), ".")
		if pipeline.SupportedImage(ext) {
			return
		}
	}
	r.fail("image file not found for product %s at row #%d (in category %s, %s)", code, n, category, csvPath)
}
