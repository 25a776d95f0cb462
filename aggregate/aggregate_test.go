package aggregate_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/modernice/mdmerge/aggregate"
	"github.com/modernice/mdmerge/internal/tests"
	"github.com/spf13/afero"
)

func TestWriter_Write(t *testing.T) {
	repo := tests.Repo(t, tests.Files{
		"a/x.md":       "X",
		"b/y.md":       "Y",
		"a/readme.txt": "ignored",
	})

	res, err := aggregate.New(repo).Write(context.Background(), []string{"a/x.md", "b/y.md"}, "prompt.md")
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "X\nY\n")
	tests.ExpectPaths(t, []string{"a/x.md", "b/y.md"}, res.Files)

	if len(res.Skipped) != 0 {
		t.Fatalf("no files should be skipped; got %v", res.Skipped)
	}

	if res.Bytes != 4 {
		t.Fatalf("Result.Bytes should be %d; got %d", 4, res.Bytes)
	}

	if res.Output != "prompt.md" {
		t.Fatalf("Result.Output should be %q; got %q", "prompt.md", res.Output)
	}
}

func TestWriter_Write_keepsContentAsIs(t *testing.T) {
	first := heredoc.Doc(`
		# Project layout

		Put binaries in cmd/.
	`)
	second := "no trailing newline"

	repo := tests.Repo(t, tests.Files{
		"general/layout.md": first,
		"libs/kong.md":      second,
	})

	if _, err := aggregate.New(repo).Write(context.Background(), []string{"general/layout.md", "libs/kong.md"}, "prompt.md"); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", first+"\n"+second+"\n")
}

func TestWriter_Write_truncatesOutput(t *testing.T) {
	repo := tests.Repo(t, tests.Files{
		"a/x.md":    "X",
		"prompt.md": strings.Repeat("previous run\n", 100),
	})

	if _, err := aggregate.New(repo).Write(context.Background(), []string{"a/x.md"}, "prompt.md"); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "X\n")
}

func TestWriter_Write_noFiles(t *testing.T) {
	repo := tests.Repo(t, tests.Files{
		"prompt.md": "previous run",
	})

	res, err := aggregate.New(repo).Write(context.Background(), nil, "prompt.md")
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "")

	if len(res.Files) != 0 {
		t.Fatalf("no files should be written; got %v", res.Files)
	}
}

func TestWriter_Write_skipsUnreadableFiles(t *testing.T) {
	errDenied := errors.New("permission denied")

	repo := tests.FailingFs{
		Fs: tests.Repo(t, tests.Files{
			"a/1.md": "one",
			"a/2.md": "two",
			"a/3.md": "three",
		}),
		Paths: map[string]error{"a/2.md": errDenied},
	}

	res, err := aggregate.New(repo).Write(context.Background(), []string{"a/1.md", "a/2.md", "a/3.md"}, "prompt.md")
	if err != nil {
		t.Fatalf("Write() should not fail if a single file cannot be read; got %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "one\nthree\n")
	tests.ExpectPaths(t, []string{"a/1.md", "a/3.md"}, res.Files)

	if len(res.Skipped) != 1 {
		t.Fatalf("exactly one file should be skipped; got %v", res.Skipped)
	}

	if res.Skipped[0].Path != "a/2.md" {
		t.Fatalf("skipped file should be %q; got %q", "a/2.md", res.Skipped[0].Path)
	}

	if !errors.Is(res.Skipped[0].Err, errDenied) {
		t.Fatalf("skipped file should carry the read error; got %v", res.Skipped[0].Err)
	}

	if !errors.Is(res.Err(), errDenied) {
		t.Fatalf("Result.Err() should report the read error; got %v", res.Err())
	}
}

func TestWriter_Write_missingFile(t *testing.T) {
	repo := tests.Repo(t, tests.Files{"a/x.md": "X"})

	res, err := aggregate.New(repo).Write(context.Background(), []string{"a/gone.md", "a/x.md"}, "prompt.md")
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "X\n")

	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, fs.ErrNotExist) {
		t.Fatalf("missing file should be skipped with %q; got %v", fs.ErrNotExist, res.Skipped)
	}
}

func TestWriter_Write_skipsFailedWrites(t *testing.T) {
	errDiskFull := errors.New("disk full")

	// Write calls alternate between file contents and separators.
	cases := []struct {
		name   string
		failAt int
		want   string
	}{
		{
			name:   "contents",
			failAt: 3,
			want:   "one\nthree\n",
		},
		{
			name:   "separator",
			failAt: 4,
			want:   "one\ntwothree\n",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			repo := tests.FailingWrites{
				Fs: tests.Repo(t, tests.Files{
					"a/1.md": "one",
					"a/2.md": "two",
					"a/3.md": "three",
				}),
				Path:   "prompt.md",
				Writes: map[int]error{tt.failAt: errDiskFull},
			}

			res, err := aggregate.New(repo).Write(context.Background(), []string{"a/1.md", "a/2.md", "a/3.md"}, "prompt.md")
			if err != nil {
				t.Fatalf("Write() should not fail if a single write fails; got %v", err)
			}

			tests.ExpectDocument(t, repo, "prompt.md", tt.want)
			tests.ExpectPaths(t, []string{"a/1.md", "a/3.md"}, res.Files)

			if len(res.Skipped) != 1 || res.Skipped[0].Path != "a/2.md" {
				t.Fatalf("only %q should be skipped; got %v", "a/2.md", res.Skipped)
			}

			if !errors.Is(res.Skipped[0].Err, errDiskFull) {
				t.Fatalf("skipped file should carry the write error; got %v", res.Skipped[0].Err)
			}

			if res.Bytes != int64(len(tt.want)) {
				t.Fatalf("Result.Bytes should be %d; got %d", len(tt.want), res.Bytes)
			}
		})
	}
}

func TestWriter_Write_createFails(t *testing.T) {
	errReadOnly := errors.New("read-only file system")

	repo := tests.FailingFs{
		Fs:    tests.Repo(t, tests.Files{"a/x.md": "X"}),
		Paths: map[string]error{"prompt.md": errReadOnly},
	}

	_, err := aggregate.New(repo).Write(context.Background(), []string{"a/x.md"}, "prompt.md")
	if !errors.Is(err, errReadOnly) {
		t.Fatalf("Write() should fail with %q; got %v", errReadOnly, err)
	}
}

func TestWriter_Write_canceled(t *testing.T) {
	repo := tests.Repo(t, tests.Files{"a/x.md": "X"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := aggregate.New(repo).Write(ctx, []string{"a/x.md"}, "prompt.md"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write() should fail with %q; got %v", context.Canceled, err)
	}
}

func TestSeparator(t *testing.T) {
	repo := tests.Repo(t, tests.Files{
		"a/x.md": "X",
		"b/y.md": "Y",
	})

	w := aggregate.New(repo, aggregate.Separator("\n\n---\n\n"))
	if _, err := w.Write(context.Background(), []string{"a/x.md", "b/y.md"}, "prompt.md"); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "X\n\n---\n\nY\n\n---\n\n")
}

func TestStripFrontmatter(t *testing.T) {
	withMeta := heredoc.Doc(`
		---
		title: Logging
		tags: [zap, slog]
		---
		# Logging

		Log with context.
	`)
	plain := "# Routing\n"

	repo := tests.Repo(t, tests.Files{
		"general/logging.md": withMeta,
		"libs/routing.md":    plain,
	})

	w := aggregate.New(repo, aggregate.StripFrontmatter(true))
	res, err := w.Write(context.Background(), []string{"general/logging.md", "libs/routing.md"}, "prompt.md")
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	if len(res.Skipped) != 0 {
		t.Fatalf("no files should be skipped; got %v", res.Skipped)
	}

	got := string(tests.Must(afero.ReadFile(repo, "prompt.md")))

	if strings.Contains(got, "title: Logging") {
		t.Fatalf("front matter should be stripped:\n%s", got)
	}

	if !strings.Contains(got, "# Logging\n\nLog with context.\n") {
		t.Fatalf("body should be kept:\n%s", got)
	}

	if !strings.HasSuffix(got, "\n# Routing\n\n") {
		t.Fatalf("files without front matter should be kept as-is:\n%s", got)
	}
}

func TestStripFrontmatter_malformed(t *testing.T) {
	repo := tests.Repo(t, tests.Files{
		"a/broken.md": "---\ntitle: [unclosed\n---\nbody\n",
		"a/ok.md":     "ok",
	})

	w := aggregate.New(repo, aggregate.StripFrontmatter(true))
	res, err := w.Write(context.Background(), []string{"a/broken.md", "a/ok.md"}, "prompt.md")
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	tests.ExpectDocument(t, repo, "prompt.md", "ok\n")
	tests.ExpectPaths(t, []string{"a/ok.md"}, res.Files)
}
