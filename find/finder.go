package find

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/modernice/mdmerge/internal"
	"github.com/modernice/mdmerge/internal/slice"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// DefaultExtension is the extension a file must have to be collected, unless
// configured otherwise with the Extension option.
const DefaultExtension = ".md"

// Finder collects candidate files below a set of root directories. Candidates
// are returned in byte-wise lexicographic order, which is the order in which
// they end up in the aggregate document. Use New to create a Finder.
type Finder struct {
	repo    fs.FS
	skip    *Skip
	ext     string
	include []string
	exclude []string
	ignore  []string
	dedupe  bool
	log     *slog.Logger
}

// Option configures a Finder.
type Option interface {
	apply(*Finder)
}

type optionFunc func(*Finder)

func (opt optionFunc) apply(f *Finder) {
	opt(f)
}

// WithLogger returns an Option that sets the logger of a Finder.
func WithLogger(h slog.Handler) Option {
	return optionFunc(func(f *Finder) {
		f.log = slog.New(h)
	})
}

// Include returns an Option that restricts the collected files to those
// matching at least one of the given doublestar patterns. Patterns are matched
// against the slash-separated path relative to the filesystem root.
func Include(pattern ...string) Option {
	pattern = slice.NoZero(slice.Map(pattern, strings.TrimSpace))
	return optionFunc(func(f *Finder) {
		f.include = append(f.include, pattern...)
	})
}

// Exclude returns an Option that drops every file matching one of the given
// doublestar patterns.
func Exclude(pattern ...string) Option {
	pattern = slice.NoZero(slice.Map(pattern, strings.TrimSpace))
	return optionFunc(func(f *Finder) {
		f.exclude = append(f.exclude, pattern...)
	})
}

// Ignore returns an Option that drops the exact given paths from the result.
func Ignore(paths ...string) Option {
	paths = slice.NoZero(paths)
	return optionFunc(func(f *Finder) {
		for _, p := range paths {
			f.ignore = append(f.ignore, path.Clean(p))
		}
	})
}

// Extension returns an Option that sets the extension candidate files must
// have. The comparison is exact and case-sensitive. An extension without a
// leading dot gets one.
func Extension(ext string) Option {
	return optionFunc(func(f *Finder) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.ext = ext
	})
}

// Dedupe returns an Option that controls whether a file reachable from more
// than one root is collected once or once per root. Duplicates are kept by
// default.
func Dedupe(dedupe bool) Option {
	return optionFunc(func(f *Finder) {
		f.dedupe = dedupe
	})
}

// New returns a Finder that searches repo.
func New(repo fs.FS, opts ...Option) *Finder {
	f := &Finder{repo: repo}
	for _, opt := range opts {
		opt.apply(f)
	}
	if f.skip == nil {
		skip := SkipNone()
		f.skip = &skip
	}
	if f.ext == "" {
		f.ext = DefaultExtension
	}
	if f.log == nil {
		f.log = internal.NopLogger()
	}
	return f
}

// Find walks every root in the given order and returns the sorted paths of all
// candidate files below them. A root that cannot be walked fails the whole
// search; no partial result is returned.
func (f *Finder) Find(roots ...string) ([]string, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no root directories configured")
	}

	if err := f.validatePatterns(); err != nil {
		return nil, err
	}

	var files []string
	for _, root := range roots {
		clean, err := cleanRoot(root)
		if err != nil {
			return nil, err
		}

		f.log.Debug("Searching root ...", "root", clean)

		found, err := f.walk(clean)
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", root, err)
		}

		f.log.Debug(fmt.Sprintf("Found %d file(s) in %s", len(found), clean), "root", clean)

		files = append(files, found...)
	}

	if f.dedupe {
		before := len(files)
		files = slice.Unique(files)
		if removed := before - len(files); removed > 0 {
			f.log.Debug(fmt.Sprintf("Removed %d duplicate path(s)", removed))
		}
	}

	return Sort(files), nil
}

func (f *Finder) walk(root string) ([]string, error) {
	var files []string

	err := fs.WalkDir(f.repo, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		entry := Entry{
			DirEntry: d,
			Path:     p,
		}

		if d.IsDir() {
			if p != root && f.skip.ExcludeDir(entry) {
				f.log.Debug("Skipping directory", "dir", p)
				return fs.SkipDir
			}
			return nil
		}

		if path.Ext(p) != f.ext {
			return nil
		}

		if f.skip.ExcludeFile(entry) {
			f.log.Debug("Skipping file", "path", p, "reason", "skip")
			return nil
		}

		if slices.Contains(f.ignore, p) {
			f.log.Debug("Skipping file", "path", p, "reason", "ignored")
			return nil
		}

		if !f.included(p) {
			f.log.Debug("Skipping file", "path", p, "reason", "glob")
			return nil
		}

		files = append(files, p)

		return nil
	})

	return files, err
}

func (f *Finder) included(p string) bool {
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}

	for _, pattern := range f.include {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}

	return false
}

func (f *Finder) validatePatterns() error {
	for _, pattern := range append(slices.Clone(f.include), f.exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid glob pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// Sort returns a copy of paths sorted in byte-wise lexicographic order.
func Sort(paths []string) []string {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	return sorted
}

func cleanRoot(root string) (string, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return "", fmt.Errorf("empty root directory")
	}

	clean := path.Clean(trimmed)
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("invalid root directory %q: must be a relative path inside the working directory", root)
	}

	return clean, nil
}
