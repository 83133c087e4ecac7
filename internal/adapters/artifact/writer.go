// Package artifact stores raw tool output for an attempt on disk.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var ErrWrite = errors.New("write artifact")

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Writer places files under one directory as attempt_<id>_<name>.txt.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the root directory.
func (w *Writer) Dir() string { return w.dir }

// Path returns where the named artifact of an attempt lives.
func (w *Writer) Path(attemptID int64, name string) string {
	return filepath.Join(w.dir, fmt.Sprintf("attempt_%d_%s.txt", attemptID, unsafeName.ReplaceAllString(name, "_")))
}

// Write stores content atomically and returns its path.
func (w *Writer) Write(attemptID int64, name, content string) (string, error) {
	path := w.Path(attemptID, name)
	tmp, err := os.CreateTemp(w.dir, ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return path, nil
}
