// Package aggregate writes the aggregate document: the contents of a sorted
// list of files, each followed by a separator, concatenated into one output
// file.
package aggregate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adrg/frontmatter"
	"github.com/modernice/mdmerge/internal"
	"github.com/spf13/afero"
	"golang.org/x/exp/slog"
)

// DefaultSeparator is written after the contents of every file.
const DefaultSeparator = "\n"

// Writer writes aggregate documents to an afero.Fs. Source files are read from
// the same filesystem.
type Writer struct {
	fs               afero.Fs
	separator        string
	stripFrontmatter bool
	log              *slog.Logger
}

// Result describes a finished write. Files lists the paths whose contents made
// it into the output, in write order. Skipped lists the paths that were left
// out because they could not be read, transformed or written.
type Result struct {
	Output  string
	Files   []string
	Skipped []Skipped
	Bytes   int64
}

// Skipped is a file that was left out of the aggregate document.
type Skipped struct {
	Path string
	Err  error
}

func (s Skipped) String() string {
	return fmt.Sprintf("%s: %v", s.Path, s.Err)
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger returns an Option that sets the logger of a Writer.
func WithLogger(h slog.Handler) Option {
	return func(w *Writer) {
		w.log = slog.New(h)
	}
}

// Separator returns an Option that sets the string written after every file.
func Separator(sep string) Option {
	return func(w *Writer) {
		w.separator = sep
	}
}

// StripFrontmatter returns an Option that removes a leading front matter
// block (YAML, TOML or JSON) from every file before it is written.
func StripFrontmatter(strip bool) Option {
	return func(w *Writer) {
		w.stripFrontmatter = strip
	}
}

// New returns a Writer for the given filesystem.
func New(fs afero.Fs, opts ...Option) *Writer {
	w := &Writer{
		fs:        fs,
		separator: DefaultSeparator,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = internal.NopLogger()
	}
	return w
}

// Write creates (or truncates) output, along with missing parent directories,
// and writes the contents of every path in the given order, each followed by
// the separator. Failing to create the output file is fatal. A file that
// cannot be read or written is logged, recorded in Result.Skipped and left
// out; the remaining files are still written.
func (w *Writer) Write(ctx context.Context, paths []string, output string) (res Result, err error) {
	res.Output = output

	if dir := filepath.Dir(output); dir != "." {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return res, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	out, err := w.fs.Create(output)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", output, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", output, cerr)
		}
	}()

	w.log.Debug(fmt.Sprintf("Writing %d file(s) to %s ...", len(paths), output))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		content, err := w.read(path)
		if err != nil {
			res.skip(w.log, path, err)
			continue
		}

		n, err := out.Write(content)
		res.Bytes += int64(n)
		if err != nil {
			res.skip(w.log, path, fmt.Errorf("write to %s: %w", output, err))
			continue
		}

		n, err = out.WriteString(w.separator)
		res.Bytes += int64(n)
		if err != nil {
			res.skip(w.log, path, fmt.Errorf("write separator to %s: %w", output, err))
			continue
		}

		res.Files = append(res.Files, path)
	}

	return res, nil
}

func (w *Writer) read(path string) ([]byte, error) {
	content, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if !w.stripFrontmatter {
		return content, nil
	}

	var meta map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(content), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse front matter of %s: %w", path, err)
	}

	return body, nil
}

func (r *Result) skip(log *slog.Logger, path string, err error) {
	log.Error("Failed to merge file", "path", path, "error", err)
	r.Skipped = append(r.Skipped, Skipped{Path: path, Err: err})
}

// Err joins the errors of all skipped files. It returns nil if nothing was
// skipped.
func (r Result) Err() error {
	var errs []error
	for _, s := range r.Skipped {
		errs = append(errs, s.Err)
	}
	return errors.Join(errs...)
}
