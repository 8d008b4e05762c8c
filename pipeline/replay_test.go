package pipeline

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/aluiziolira/bookcrawl/models"
)

func TestReadSourceURLsMissingFile(t *testing.T) {
	urls, err := ReadSourceURLs(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatalf("read missing file: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("urls = %v, want none", urls)
	}
}

func TestReadSourceURLsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	urls, err := ReadSourceURLs(path)
	if err != nil {
		t.Fatalf("read empty file: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("urls = %v, want none", urls)
	}
}

func TestReadSourceURLsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "travel.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.Product{testProduct("a1"), testProduct("b2")}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	urls, err := ReadSourceURLs(path)
	if err != nil {
		t.Fatalf("read source urls: %v", err)
	}
	want := []string{
		"http://example.test/catalogue/a1/index.html",
		"http://example.test/catalogue/b2/index.html",
	}
	if !slices.Equal(urls, want) {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
}

func TestReadSourceURLsColumnOrderAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual.csv")
	content := "title,product_page_url\nOne,http://x/1\nTwo,\nThree,http://x/3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	urls, err := ReadSourceURLs(path)
	if err != nil {
		t.Fatalf("read source urls: %v", err)
	}
	if want := []string{"http://x/1", "http://x/3"}; !slices.Equal(urls, want) {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
}

func TestReadSourceURLsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := ReadSourceURLs(path); err == nil {
		t.Fatalf("expected error for file without %s column", URLColumn)
	}
}
