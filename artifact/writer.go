package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the part of the file system the writer needs.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(name string, data []byte, perm os.FileMode) error
	ReadFile(name string) ([]byte, error)
}

// OSFileSystem is the FileSystem of the operating system.
type OSFileSystem struct{}

// MkdirAll calls os.MkdirAll.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// WriteFile calls os.WriteFile.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// ReadFile calls os.ReadFile.
func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// A Writer stores artifacts in a directory.
type Writer struct {
	FS  FileSystem
	Dir string
}

// NewWriter creates a writer for dir on the OS file system.
func NewWriter(dir string) Writer {
	return Writer{FS: OSFileSystem{}, Dir: dir}
}

// Path returns where a is stored.
func (w Writer) Path(a Artifact) string {
	return filepath.Join(w.Dir, a.FileName)
}

// Write stores a, replacing any existing file.
func (w Writer) Write(a Artifact) (string, error) {
	if w.Dir != "" {
		if err := w.FS.MkdirAll(w.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir %s: %w", w.Dir, err)
		}
	}

	path := w.Path(a)
	if err := w.FS.WriteFile(path, a.Content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

// IsCurrent tells whether the stored file has exactly the content of a. A
// missing file is not current.
func (w Writer) IsCurrent(a Artifact) (bool, error) {
	path := w.Path(a)

	data, err := w.FS.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	return Fingerprint(data) == a.Fingerprint(), nil
}
