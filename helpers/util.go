package helpers

import (
	"fmt"
	"os"
	"path/filepath"
)

// PageFileName returns the zero-padded file name of a crawled page,
// e.g. page_007.html
func PageFileName(page int, ext string) string {
	return fmt.Sprintf("page_%03d.%s", page, ext)
}

// WriteFile writes data to path, creating parent directories as needed
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
