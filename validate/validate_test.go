package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/bookcrawl/models"
	"github.com/aluiziolira/bookcrawl/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCategory lays out a category the way a crawl does: a CSV file plus
// one image per product code.
func writeCategory(t *testing.T, dataDir, name string, codes ...string) {
	t.Helper()
	w, err := pipeline.NewCSVWriter(filepath.Join(dataDir, pipeline.SafeName(name, ".csv")))
	require.NoError(t, err)
	imageDir := filepath.Join(dataDir, "images", pipeline.SafeName(name, ""))
	for _, code := range codes {
		require.NoError(t, w.Write([]*models.Product{{PageURL: "http://x/" + code, UPC: code, Category: name}}))
		_, err := pipeline.SaveImage(imageDir, code, "jpeg", []byte{0xff})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestReadSpecs(t *testing.T) {
	specs, err := ReadSpecs(strings.NewReader("category,product_count\nTravel,11\nHistorical Fiction,26\n"))
	require.NoError(t, err)
	assert.Equal(t, []Expectation{
		{Category: "Travel", ProductCount: 11},
		{Category: "Historical Fiction", ProductCount: 26},
	}, specs)
}

func TestReadSpecsRejectsBadInput(t *testing.T) {
	tests := map[string]string{
		"wrong header": "name,count\nTravel,1\n",
		"bad count":    "category,product_count\nTravel,many\n",
		"negative":     "category,product_count\nTravel,-1\n",
		"empty":        "",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSpecs(strings.NewReader(input))
			assert.True(t, errors.Is(err, ErrBadSpecs), "err = %v", err)
		})
	}
}

func TestSelect(t *testing.T) {
	specs := []Expectation{{"Travel", 1}, {"Poetry", 2}}

	all, err := Select(specs, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := Select(specs, []string{"Poetry"})
	require.NoError(t, err)
	assert.Equal(t, []Expectation{{"Poetry", 2}}, one)

	_, err = Select(specs, []string{"Horror"})
	assert.Error(t, err)
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file)
	assert.Error(t, err)
}

func TestValidateHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "Travel", "a1", "b2")
	writeCategory(t, dir, "Historical Fiction", "c3")

	v, err := New(dir)
	require.NoError(t, err)
	report := v.Validate([]Expectation{{"Travel", 2}, {"Historical Fiction", 1}})

	assert.True(t, report.OK(), "errors: %v", report.Errors)
	assert.Equal(t, 2, report.Categories)
	assert.Equal(t, 3, report.Products)
	assert.Equal(t, 3, report.Images)
	assert.Equal(t, 3, report.ExpectedProducts)
}

func TestValidateReportsProblems(t *testing.T) {
	dir := t.TempDir()
	writeCategory(t, dir, "Travel", "a1", "b2")
	require.NoError(t, os.Remove(filepath.Join(dir, "images", "Travel", "b2.jpeg")))

	v, err := New(dir)
	require.NoError(t, err)
	report := v.Validate([]Expectation{{"Travel", 3}, {"Mystery", 1}})

	assert.False(t, report.OK())
	require.Len(t, report.Errors, 3)
	assert.Contains(t, report.Errors[0], "image file not found for product b2")
	assert.Contains(t, report.Errors[1], "wrong product count for category Travel")
	assert.Contains(t, report.Errors[2], "missing CSV file for category Mystery")
}

func TestValidateHeaderAndShortRows(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join(pipeline.Columns[:len(pipeline.Columns)-1], ",") + ",extra\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Poetry.csv"), []byte(content), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images", "Poetry"), 0o755))

	v, err := New(dir)
	require.NoError(t, err)
	report := v.Validate([]Expectation{{"Poetry", 0}})
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "missing fields")
	assert.Contains(t, report.Errors[1], "unexpected fields")

	short := strings.Join(pipeline.Columns, ",") + "\nhttp://x/1,abc\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Poetry.csv"), []byte(short), 0o644))
	report = v.Validate([]Expectation{{"Poetry", 1}})
	assert.Len(t, report.Errors, len(pipeline.Columns)-2+1)
}
