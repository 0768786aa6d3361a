package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileLoader reads HTML from the local filesystem. Plain paths and file://
// URLs are accepted.
type FileLoader struct{}

// Load implements Loader.
func (FileLoader) Load(ctx context.Context, path string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = strings.TrimPrefix(path, "file://")
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	return &Snapshot{URL: "file://" + filepath.ToSlash(abs), HTML: string(data)}, nil
}

// IsRemote reports whether target should go through a network loader rather
// than FileLoader.
func IsRemote(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
