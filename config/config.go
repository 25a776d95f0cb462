// Package config loads the optional .mdmerge.yml project file and resolves it
// against command-line flags and built-in defaults.
//
// Precedence, highest first: flags, config file, defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/modernice/mdmerge"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file that is loaded if it exists and no other file
// was requested.
const DefaultFile = ".mdmerge.yml"

// ErrNotFound is returned by Load if an explicitly requested config file does
// not exist.
var ErrNotFound = errors.New("config file not found")

// Config is the merge configuration. Zero values mean "not set" and are filled
// from the next source in line. Switches are pointers so that a higher source
// can turn off what a lower one turned on.
type Config struct {
	Roots            []string `yaml:"roots,omitempty"`
	Output           string   `yaml:"output,omitempty"`
	Include          []string `yaml:"include,omitempty"`
	Exclude          []string `yaml:"exclude,omitempty"`
	Dedupe           *bool    `yaml:"dedupe,omitempty"`
	StripFrontmatter *bool    `yaml:"strip_frontmatter,omitempty"`
	SkipHidden       *bool    `yaml:"skip_hidden,omitempty"`
	Model            string   `yaml:"model,omitempty"`
	MaxTokens        int      `yaml:"max_tokens,omitempty"`
}

// Bool returns a switch that is set to v.
func Bool(v bool) *bool {
	return &v
}

// Enabled reports whether the switch b is set and turned on. Unset switches
// are off.
func Enabled(b *bool) bool {
	return b != nil && *b
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Roots:  append([]string(nil), mdmerge.DefaultRoots...),
		Output: mdmerge.DefaultOutput,
		Model:  mdmerge.DefaultModel,
	}
}

// Load reads the config file at path from fsys. If path is empty, DefaultFile
// is tried and a missing file yields an empty Config. A missing file that was
// explicitly requested fails with ErrNotFound. Unknown keys are rejected.
func Load(fsys afero.Fs, path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	b, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		if explicit {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes a YAML config document.
func Parse(b []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	return cfg, nil
}

// Override returns c with every field that is set in o replaced by the value
// from o.
func (c Config) Override(o Config) Config {
	if len(o.Roots) > 0 {
		c.Roots = o.Roots
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if len(o.Include) > 0 {
		c.Include = o.Include
	}
	if len(o.Exclude) > 0 {
		c.Exclude = o.Exclude
	}
	if o.Dedupe != nil {
		c.Dedupe = o.Dedupe
	}
	if o.StripFrontmatter != nil {
		c.StripFrontmatter = o.StripFrontmatter
	}
	if o.SkipHidden != nil {
		c.SkipHidden = o.SkipHidden
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.MaxTokens > 0 {
		c.MaxTokens = o.MaxTokens
	}
	return c
}

// Resolve returns the effective configuration: defaults, overridden by file,
// overridden by flags.
func Resolve(file, flags Config) Config {
	return Default().Override(file).Override(flags)
}
