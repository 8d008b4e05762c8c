package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnsupportedImage is returned for media subtypes that are not saved.
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageSubtypes = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
}

var separatorsRe = regexp.MustCompile(`[\s/]+`)

// SafeName turns name into a file base name: leading and trailing spaces and
// slashes are dropped and every run of whitespace or slashes becomes "_".
func SafeName(name, suffix string) string {
	return separatorsRe.ReplaceAllString(strings.Trim(name, " /"), "_") + suffix
}

// SupportedImage reports whether subtype is an accepted image format.
func SupportedImage(subtype string) bool {
	return imageSubtypes[strings.ToLower(subtype)]
}

// SaveImage writes body to dir as <code>.<subtype>, creating dir on demand.
func SaveImage(dir, code, subtype string, body []byte) (string, error) {
	subtype = strings.ToLower(subtype)
	if !SupportedImage(subtype) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, subtype)
	}
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("image needs a product code")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image directory %q: %w", dir, err)
	}

	path := filepath.Join(dir, SafeName(code, "."+subtype))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}
