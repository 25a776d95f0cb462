package mdmerge

import (
	"context"
	"fmt"
	"path"

	"github.com/modernice/mdmerge/aggregate"
	"github.com/modernice/mdmerge/find"
	"github.com/modernice/mdmerge/internal"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"golang.org/x/exp/slog"
)

// DefaultModel is the model whose tokenizer is used to count the tokens of a
// merged prompt if no other model is configured.
const DefaultModel = openai.GPT3Dot5Turbo

var (
	// DefaultRoots are the directories that are merged if no roots are configured.
	DefaultRoots = []string{"general", "libs"}

	// DefaultOutput is the file the merged prompt is written to if no output
	// is configured.
	DefaultOutput = "prompt.md"
)

// Merger merges the markdown files of a set of root directories into a single
// prompt document. All paths are relative to the root of the filesystem the
// Merger was created with.
type Merger struct {
	fs  afero.Fs
	log *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger returns an Option that sets the logger of a Merger. The handler is
// passed on to the Finder and Writer used during a merge.
func WithLogger(h slog.Handler) Option {
	return func(m *Merger) {
		m.log = slog.New(h)
	}
}

// New returns a Merger that reads and writes files in fs.
func New(fs afero.Fs, opts ...Option) *Merger {
	m := &Merger{fs: fs}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = internal.NopLogger()
	}
	return m
}

// MergeOption configures a single call to Merge or Files.
type MergeOption func(*merge)

// FindWith returns a MergeOption that passes options to the Finder that
// collects the files to merge.
func FindWith(opts ...find.Option) MergeOption {
	return func(m *merge) {
		m.findOpts = append(m.findOpts, opts...)
	}
}

// WriteWith returns a MergeOption that passes options to the Writer that
// writes the merged document.
func WriteWith(opts ...aggregate.Option) MergeOption {
	return func(m *merge) {
		m.writeOpts = append(m.writeOpts, opts...)
	}
}

// CountTokens returns a MergeOption that counts the tokens of the merged
// document using the tokenizer of the given OpenAI model. An empty model uses
// DefaultModel.
func CountTokens(model string) MergeOption {
	return func(m *merge) {
		if model == "" {
			model = DefaultModel
		}
		m.tokenModel = model
	}
}

type merge struct {
	findOpts   []find.Option
	writeOpts  []aggregate.Option
	tokenModel string
}

func (m *Merger) configure(opts []MergeOption) merge {
	var cfg merge
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Result is the result of a merge. Tokens is only set if the merge was
// configured with CountTokens.
type Result struct {
	aggregate.Result

	Model  string
	Tokens int
}

// Files returns the sorted paths of the markdown files below roots, without
// writing anything.
func (m *Merger) Files(ctx context.Context, roots []string, opts ...MergeOption) ([]string, error) {
	cfg := m.configure(opts)
	return m.find(ctx, roots, cfg.findOpts)
}

// Merge collects the markdown files below roots, sorts them by path and writes
// their concatenated contents to output. If a root cannot be walked, Merge
// fails before output is touched. The output file itself is never collected,
// even if it lies below one of the roots.
func (m *Merger) Merge(ctx context.Context, roots []string, output string, opts ...MergeOption) (*Result, error) {
	cfg := m.configure(opts)

	findOpts := append([]find.Option{find.Ignore(path.Clean(output))}, cfg.findOpts...)
	files, err := m.find(ctx, roots, findOpts)
	if err != nil {
		return nil, err
	}

	writeOpts := append([]aggregate.Option{aggregate.WithLogger(m.log.Handler())}, cfg.writeOpts...)
	written, err := aggregate.New(m.fs, writeOpts...).Write(ctx, files, output)
	if err != nil {
		return nil, fmt.Errorf("merge into %s: %w", output, err)
	}

	res := &Result{Result: written}

	m.log.Info(fmt.Sprintf("Merged %d of %d file(s) into %s", len(written.Files), len(files), output), "bytes", written.Bytes, "skipped", len(written.Skipped))

	if cfg.tokenModel != "" {
		if res.Tokens, err = m.countTokens(cfg.tokenModel, output); err != nil {
			return res, fmt.Errorf("count tokens: %w", err)
		}
		res.Model = cfg.tokenModel

		m.log.Info(fmt.Sprintf("Prompt has %d token(s)", res.Tokens), "model", res.Model)
	}

	return res, nil
}

func (m *Merger) find(ctx context.Context, roots []string, opts []find.Option) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.log.Info("Searching for markdown files ...", "roots", roots)

	opts = append([]find.Option{find.WithLogger(m.log.Handler())}, opts...)
	files, err := find.New(afero.NewIOFS(m.fs), opts...).Find(roots...)
	if err != nil {
		return nil, fmt.Errorf("find markdown files: %w", err)
	}

	return files, nil
}

func (m *Merger) countTokens(model, output string) (int, error) {
	content, err := afero.ReadFile(m.fs, output)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", output, err)
	}

	codec, err := internal.OpenAITokenizer(model)
	if err != nil {
		return 0, err
	}

	ids, _, err := codec.Encode(string(content))
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", output, err)
	}

	return len(ids), nil
}
