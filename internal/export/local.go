package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies the output path rule: a path ending in .txt names the
// file itself, anything else is a directory that receives processes.txt.
func ResolvePath(dest string) string {
	if strings.EqualFold(filepath.Ext(dest), ".txt") {
		return filepath.Clean(dest)
	}
	return filepath.Join(dest, DefaultFileName)
}

// PrepareLocal resolves dest, creates its parent directory and fails if the
// final path exists as a directory.
func PrepareLocal(dest string) (string, error) {
	if strings.TrimSpace(dest) == "" {
		return "", ErrEmptyDestination
	}

	path, err := filepath.Abs(ResolvePath(dest))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	return path, nil
}

// LocalFile writes the report to a file, replacing any previous content.
type LocalFile struct {
	path string
}

func NewLocalFile(path string) *LocalFile {
	return &LocalFile{path: path}
}

// Path returns the file that will be written.
func (f *LocalFile) Path() string {
	return f.path
}

// Write stages the report in a temp file next to the target and renames it
// into place.
func (f *LocalFile) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

func (f *LocalFile) String() string {
	return f.path
}
