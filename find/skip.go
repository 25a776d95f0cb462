package find

import (
	"io/fs"
	"strings"
)

// Skip describes which directories and files a Finder leaves out while walking
// its roots. The zero value skips nothing, so every candidate under a root is
// collected. Dir and File allow custom rules on top of the built-in ones.
type Skip struct {
	// Hidden skips directories whose name starts with a dot.
	Hidden bool
	// Dotfiles skips files whose name starts with a dot.
	Dotfiles bool

	Dir  func(Entry) bool
	File func(Entry) bool
}

// Entry is the walked entry a Skip rule is evaluated against. Path is relative
// to the root of the walked filesystem.
type Entry struct {
	fs.DirEntry
	Path string
}

// SkipNone returns a Skip that excludes nothing. It is the Finder default.
func SkipNone() Skip {
	return Skip{}
}

// SkipHidden returns a Skip that excludes hidden directories and dotfiles.
func SkipHidden() Skip {
	return Skip{
		Hidden:   true,
		Dotfiles: true,
	}
}

func (s Skip) apply(f *Finder) {
	f.skip = &s
}

// ExcludeDir reports whether the directory e and everything below it should be
// left out. Roots themselves are never passed to ExcludeDir.
func (s Skip) ExcludeDir(e Entry) bool {
	if s.Hidden && strings.HasPrefix(e.Name(), ".") {
		return true
	}

	if s.Dir != nil {
		return s.Dir(e)
	}

	return false
}

// ExcludeFile reports whether the candidate file f should be left out.
func (s Skip) ExcludeFile(f Entry) bool {
	if s.Dotfiles && strings.HasPrefix(f.Name(), ".") {
		return true
	}

	if s.File != nil {
		return s.File(f)
	}

	return false
}
