package tests

import (
	"testing"

	"github.com/andreyvit/diff"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

// ExpectPaths fails the test if got does not equal want, element by element.
func ExpectPaths(t *testing.T, want, got []string) {
	t.Helper()

	if !cmp.Equal(want, got) {
		t.Fatalf("unexpected paths:\n%s", cmp.Diff(want, got))
	}
}

// ExpectDocument fails the test if the file at path in fsys does not contain
// exactly want.
func ExpectDocument(t *testing.T, fsys afero.Fs, path, want string) {
	t.Helper()

	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	if got := string(b); got != want {
		t.Fatalf("unexpected content in %s:\n%s\n\nwant:\n%q\n\ngot:\n%q", path, diff.LineDiff(want, got), want, got)
	}
}
