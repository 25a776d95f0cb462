package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/modernice/mdmerge"
	"github.com/modernice/mdmerge/aggregate"
	"github.com/modernice/mdmerge/config"
	"github.com/modernice/mdmerge/find"
	"github.com/spf13/afero"
	"golang.org/x/exp/slog"
)

// CLI is the command tree of the mdmerge tool.
type CLI struct {
	Globals

	Merge MergeCmd `cmd:"" default:"1" help:"Merge markdown files into a single prompt document (default)."`
	List  ListCmd  `cmd:"" help:"List the markdown files that would be merged, in merge order."`
}

// Globals are the flags shared by all commands.
type Globals struct {
	Dir     string `name:"dir" short:"C" default:"." env:"MDMERGE_DIR" help:"Working directory. Roots, output and config are resolved relative to it."`
	Config  string `name:"config" env:"MDMERGE_CONFIG" help:"Config file (default: .mdmerge.yml if it exists)."`
	Verbose bool   `name:"verbose" short:"v" env:"MDMERGE_VERBOSE" help:"Enable verbose logging."`
}

// Collection are the flags that control which files are merged.
type Collection struct {
	Roots        []string `name:"root" short:"r" env:"MDMERGE_ROOTS" help:"Root directory to scan, in order (default: general, libs)."`
	Include      []string `name:"include" short:"i" env:"MDMERGE_INCLUDE" help:"Glob pattern(s) of files to include."`
	Exclude      []string `name:"exclude" short:"e" env:"MDMERGE_EXCLUDE" help:"Glob pattern(s) of files to exclude."`
	Dedupe       bool     `name:"dedupe" xor:"dedupe" env:"MDMERGE_DEDUPE" help:"Merge files reachable from multiple roots only once."`
	NoDedupe     bool     `name:"no-dedupe" xor:"dedupe" help:"Merge files once per root that reaches them, even if the config enables --dedupe."`
	SkipHidden   bool     `name:"skip-hidden" xor:"skip-hidden" env:"MDMERGE_SKIP_HIDDEN" help:"Skip hidden directories and dotfiles."`
	NoSkipHidden bool     `name:"no-skip-hidden" xor:"skip-hidden" help:"Merge hidden directories and dotfiles, even if the config enables --skip-hidden."`
}

// MergeCmd writes the merged prompt document.
type MergeCmd struct {
	Collection

	Output             string `name:"out" short:"o" env:"MDMERGE_OUTPUT" help:"Output file inside the working directory (default: prompt.md)."`
	StripFrontmatter   bool   `name:"strip-frontmatter" xor:"strip-frontmatter" env:"MDMERGE_STRIP_FRONTMATTER" help:"Remove front matter blocks before merging."`
	NoStripFrontmatter bool   `name:"no-strip-frontmatter" xor:"strip-frontmatter" help:"Keep front matter blocks, even if the config enables --strip-frontmatter."`
	Tokens             bool   `name:"tokens" short:"t" env:"MDMERGE_TOKENS" help:"Count the tokens of the merged prompt."`
	Model              string `name:"model" env:"MDMERGE_MODEL" help:"OpenAI model whose tokenizer is used to count tokens (default: gpt-3.5-turbo)."`
	MaxTokens          int    `name:"max-tokens" env:"MDMERGE_MAX_TOKENS" help:"Warn if the merged prompt has more tokens than this. Implies --tokens."`
}

// ListCmd prints the files that would be merged.
type ListCmd struct {
	Collection
}

// Run merges the markdown files below the configured roots into the output
// file and prints a confirmation. Files that cannot be read are logged and
// left out without failing the command.
func (cmd *MergeCmd) Run(g *Globals, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dir, err := g.workdir()
	if err != nil {
		return err
	}
	fsys := afero.NewBasePathFs(afero.NewOsFs(), dir)

	cfg, err := g.resolve(fsys, cmd.Collection.config().Override(config.Config{
		Output:           cmd.Output,
		StripFrontmatter: toggle(cmd.StripFrontmatter, cmd.NoStripFrontmatter),
		Model:            cmd.Model,
		MaxTokens:        cmd.MaxTokens,
	}))
	if err != nil {
		return err
	}

	output, err := outputPath(dir, cfg.Output)
	if err != nil {
		return err
	}

	log := g.logHandler()
	m := mdmerge.New(fsys, mdmerge.WithLogger(log))

	opts := []mdmerge.MergeOption{
		mdmerge.FindWith(findOptions(cfg)...),
		mdmerge.WriteWith(aggregate.StripFrontmatter(config.Enabled(cfg.StripFrontmatter))),
	}
	if cmd.Tokens || cfg.MaxTokens > 0 {
		opts = append(opts, mdmerge.CountTokens(cfg.Model))
	}

	res, err := m.Merge(ctx, cfg.Roots, output, opts...)
	if err != nil {
		return err
	}

	if res.Model != "" && cfg.MaxTokens > 0 && res.Tokens > cfg.MaxTokens {
		slog.New(log).Warn("Prompt exceeds token budget", "tokens", res.Tokens, "max", cfg.MaxTokens, "model", res.Model)
	}

	fmt.Fprintf(out, "Successfully merged %d markdown files to %s\n", len(res.Files), cfg.Output)
	if res.Model != "" {
		fmt.Fprintf(out, "%d tokens (%s)\n", res.Tokens, res.Model)
	}

	return nil
}

// Run prints the sorted paths of the files that would be merged, one per line.
func (cmd *ListCmd) Run(g *Globals, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dir, err := g.workdir()
	if err != nil {
		return err
	}
	fsys := afero.NewBasePathFs(afero.NewOsFs(), dir)

	cfg, err := g.resolve(fsys, cmd.Collection.config())
	if err != nil {
		return err
	}

	files, err := mdmerge.New(fsys, mdmerge.WithLogger(g.logHandler())).
		Files(ctx, cfg.Roots, mdmerge.FindWith(findOptions(cfg)...))
	if err != nil {
		return err
	}

	for _, file := range files {
		fmt.Fprintln(out, file)
	}

	return nil
}

func (c Collection) config() config.Config {
	return config.Config{
		Roots:      c.Roots,
		Include:    c.Include,
		Exclude:    c.Exclude,
		Dedupe:     toggle(c.Dedupe, c.NoDedupe),
		SkipHidden: toggle(c.SkipHidden, c.NoSkipHidden),
	}
}

// toggle turns an --x / --no-x flag pair into a config switch. Neither flag
// leaves the switch unset.
func toggle(on, off bool) *bool {
	switch {
	case on:
		return config.Bool(true)
	case off:
		return config.Bool(false)
	default:
		return nil
	}
}

func (g *Globals) workdir() (string, error) {
	dir, err := filepath.Abs(g.Dir)
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", dir)
	}

	return dir, nil
}

// outputPath returns output relative to dir. An absolute output is accepted if
// it lies inside dir. Paths that leave dir are rejected.
func outputPath(dir, output string) (string, error) {
	rel := filepath.Clean(output)
	if filepath.IsAbs(rel) {
		var err error
		if rel, err = filepath.Rel(dir, rel); err != nil {
			return "", fmt.Errorf("output %s: %w", output, err)
		}
	}

	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid output %q: must be a file inside the working directory %s", output, dir)
	}

	return filepath.ToSlash(rel), nil
}

func (g *Globals) resolve(fsys afero.Fs, flags config.Config) (config.Config, error) {
	file, err := config.Load(fsys, g.Config)
	if err != nil {
		return config.Config{}, err
	}
	return config.Resolve(file, flags), nil
}

func (g *Globals) logHandler() slog.Handler {
	var level slog.Level
	if g.Verbose {
		level = slog.LevelDebug
	}
	return slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr)
}

func findOptions(cfg config.Config) []find.Option {
	opts := []find.Option{
		find.Include(cfg.Include...),
		find.Exclude(cfg.Exclude...),
		find.Dedupe(config.Enabled(cfg.Dedupe)),
	}
	if config.Enabled(cfg.SkipHidden) {
		opts = append(opts, find.SkipHidden())
	}
	return opts
}

// New parses the command-line arguments and returns the resulting
// *kong.Context. Calling Run on it executes the selected command.
func New() *kong.Context {
	var cli CLI
	return kong.Parse(&cli, Options(&cli, os.Stdout)...)
}

// Options returns the kong options the mdmerge command tree is parsed with.
// Command output is written to out.
func Options(cli *CLI, out io.Writer) []kong.Option {
	return []kong.Option{
		kong.Name("mdmerge"),
		kong.Description("Merge markdown convention documents into a single prompt."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
		kong.BindTo(out, (*io.Writer)(nil)),
	}
}
