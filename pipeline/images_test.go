package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
		want   string
	}{
		{name: "Travel", suffix: ".csv", want: "Travel.csv"},
		{name: "Historical Fiction", suffix: ".csv", want: "Historical_Fiction.csv"},
		{name: " /Sci Fi / Fantasy/ ", suffix: "", want: "Sci_Fi_Fantasy"},
		{name: "a\t\tb", suffix: ".png", want: "a_b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeName(tt.name, tt.suffix); got != tt.want {
				t.Fatalf("SafeName(%q, %q) = %q, want %q", tt.name, tt.suffix, got, tt.want)
			}
		})
	}
}

func TestSaveImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images", "Poetry")

	path, err := SaveImage(dir, "a897fe39b1053632", "JPEG", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("save image: %v", err)
	}
	if want := filepath.Join(dir, "a897fe39b1053632.jpeg"); path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("image size = %d, want 2", len(data))
	}
}

func TestSaveImageRejectsUnsupportedType(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")

	_, err := SaveImage(dir, "abc", "webp", []byte("x"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("err = %v, want ErrUnsupportedImage", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("directory should not be created for rejected image")
	}
}
