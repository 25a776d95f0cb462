package tests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// Must is a function that takes a value and an error and returns the value. If
// the error is not nil, Must panics with the error.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Files is a file tree, keyed by slash-separated path.
type Files map[string]string

// Repo returns an in-memory filesystem that contains files.
func Repo(t *testing.T, files Files) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	WriteFiles(t, fsys, files)
	return fsys
}

// WriteFiles writes files to fsys, creating parent directories as needed.
func WriteFiles(t *testing.T, fsys afero.Fs, files Files) {
	t.Helper()

	for path, content := range files {
		dir := filepath.Dir(filepath.FromSlash(path))
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("create directory %s: %v", dir, err)
		}
		if err := afero.WriteFile(fsys, filepath.FromSlash(path), []byte(content), 0644); err != nil {
			t.Fatalf("create file %s: %v", path, err)
		}
	}
}

// FailingFs wraps an afero.Fs and fails every attempt to open one of the
// given paths, simulating unreadable files.
type FailingFs struct {
	afero.Fs
	Paths map[string]error
}

// Open fails with the configured error for failing paths and delegates to the
// wrapped Fs otherwise.
func (fsys FailingFs) Open(name string) (afero.File, error) {
	if err, ok := fsys.Paths[filepath.ToSlash(filepath.Clean(name))]; ok {
		return nil, err
	}
	return fsys.Fs.Open(name)
}

// OpenFile fails with the configured error for failing paths and delegates to
// the wrapped Fs otherwise.
func (fsys FailingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if err, ok := fsys.Paths[filepath.ToSlash(filepath.Clean(name))]; ok {
		return nil, err
	}
	return fsys.Fs.OpenFile(name, flag, perm)
}

// Create fails with the configured error for failing paths and delegates to
// the wrapped Fs otherwise.
func (fsys FailingFs) Create(name string) (afero.File, error) {
	if err, ok := fsys.Paths[filepath.ToSlash(filepath.Clean(name))]; ok {
		return nil, err
	}
	return fsys.Fs.Create(name)
}

// FailingWrites wraps an afero.Fs. The file created at Path fails the write
// calls whose 1-based index is a key of Writes with the mapped error. Write and
// WriteString share one counter.
type FailingWrites struct {
	afero.Fs
	Path   string
	Writes map[int]error
}

// Create wraps the file created at Path and delegates every other call to the
// wrapped Fs.
func (fsys FailingWrites) Create(name string) (afero.File, error) {
	f, err := fsys.Fs.Create(name)
	if err != nil || filepath.ToSlash(filepath.Clean(name)) != fsys.Path {
		return f, err
	}
	return &failingFile{File: f, fail: fsys.Writes}, nil
}

type failingFile struct {
	afero.File
	fail  map[int]error
	calls int
}

func (f *failingFile) Write(p []byte) (int, error) {
	f.calls++
	if err, ok := f.fail[f.calls]; ok {
		return 0, err
	}
	return f.File.Write(p)
}

func (f *failingFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}
