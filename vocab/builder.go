package vocab

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"golang.org/x/sync/errgroup"

	"github.com/vocabtrim/vocabtrim/logutil"
	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

// LineMode controls what happens to a non-blank line that tokenizes to nothing.
type LineMode int

const (
	// Strict fails the build with a MalformedLineError.
	Strict LineMode = iota
	// Relaxed logs a warning and skips the line.
	Relaxed
)

func (m LineMode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Relaxed:
		return "relaxed"
	default:
		return fmt.Sprintf("LineMode(%d)", int(m))
	}
}

const DefaultWorkers = 4

// Builder counts symbols from corpora. Counts are additive; the order in which
// a symbol was first added is kept to break ties in Finalize.
//
// A Builder is not safe for concurrent use. AddFiles parallelizes internally.
type Builder struct {
	specials []string
	special  map[string]struct{}

	counts map[string]int
	order  []string

	tokenize Tokenizer
	mode     LineMode
	workers  int
	fileDone func(path string, lines int)
}

type BuilderOption func(*Builder)

// WithSpecials replaces the default special prefix.
func WithSpecials(symbols ...string) BuilderOption {
	return func(b *Builder) {
		b.specials = slices.Clone(symbols)
	}
}

// WithExtraSpecials appends special symbols after the default special prefix.
func WithExtraSpecials(symbols ...string) BuilderOption {
	return func(b *Builder) {
		b.specials = append(b.specials, symbols...)
	}
}

func WithLineMode(mode LineMode) BuilderOption {
	return func(b *Builder) {
		b.mode = mode
	}
}

// WithWorkers sets how many corpus files are scanned at once.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

func WithTokenizer(fn Tokenizer) BuilderOption {
	return func(b *Builder) {
		b.tokenize = fn
	}
}

// WithFileDone registers a callback invoked after each file is scanned. It
// may be called from several goroutines at once.
func WithFileDone(fn func(path string, lines int)) BuilderOption {
	return func(b *Builder) {
		b.fileDone = fn
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		specials: slices.Clone(DefaultSpecials),
		counts:   make(map[string]int),
		tokenize: TokenizeLine,
		mode:     Strict,
		workers:  DefaultWorkers,
	}

	for _, opt := range opts {
		opt(b)
	}

	specials := b.specials[:0]
	b.special = make(map[string]struct{}, len(b.specials))
	for _, s := range b.specials {
		if _, ok := b.special[s]; !ok {
			b.special[s] = struct{}{}
			specials = append(specials, s)
		}
	}
	b.specials = specials

	return b
}

// AddSymbol adds n occurrences of symbol. Special symbols are pinned to the
// front of the dictionary and their occurrences are not counted.
func (b *Builder) AddSymbol(symbol string, n int) {
	if _, ok := b.special[symbol]; ok {
		return
	}

	if _, ok := b.counts[symbol]; !ok {
		b.order = append(b.order, symbol)
	}

	b.counts[symbol] += n
}

// Len returns the number of distinct non-special symbols seen so far.
func (b *Builder) Len() int {
	return len(b.order)
}

// AddFile counts every symbol of the file at path.
func (b *Builder) AddFile(path string) error {
	counts, err := b.countFile(path)
	if err != nil {
		return err
	}

	b.merge(counts)
	return nil
}

// AddFiles counts every file matching pattern. Files are scanned concurrently
// but merged in sorted path order, so the result is the same as adding each
// file in turn with AddFile.
func (b *Builder) AddFiles(pattern string) error {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("invalid corpus pattern %q: %w", pattern, err)
	}

	if len(paths) == 0 {
		return &errtypes.MissingFileError{Path: pattern}
	}

	slices.Sort(paths)

	shards := make([]*linkedhashmap.Map, len(paths))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, path := range paths {
		g.Go(func() error {
			counts, err := b.countFile(path)
			if err != nil {
				return err
			}

			shards[i] = counts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, counts := range shards {
		b.merge(counts)
	}

	slog.Debug("counted corpus", "files", len(paths), "symbols", b.Len())
	return nil
}

func (b *Builder) merge(counts *linkedhashmap.Map) {
	it := counts.Iterator()
	for it.Next() {
		b.AddSymbol(it.Key().(string), it.Value().(int))
	}
}

// countFile returns per-symbol counts for one file, keyed in first-seen order.
func (b *Builder) countFile(path string) (*linkedhashmap.Map, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &errtypes.MissingFileError{Path: path}
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	counts := linkedhashmap.New()

	br := bufio.NewReader(f)
	var n int
	for {
		line, err := br.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			break
		} else if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		n++
		if strings.TrimSpace(line) == "" {
			continue
		}

		symbols := b.tokenize(line)
		if len(symbols) == 0 {
			if b.mode == Strict {
				return nil, &errtypes.MalformedLineError{Path: path, Line: n}
			}

			slog.Warn("skipping line without symbols", "path", path, "line", n)
			continue
		}

		for _, s := range symbols {
			if v, ok := counts.Get(s); ok {
				counts.Put(s, v.(int)+1)
			} else {
				counts.Put(s, 1)
			}
		}
	}

	logutil.Trace("scanned corpus file", "path", path, "lines", n, "symbols", counts.Size())
	if b.fileDone != nil {
		b.fileDone(path, n)
	}

	return counts, nil
}

type FinalizeOptions struct {
	// Threshold drops symbols seen fewer times. Values <= 0 keep everything.
	Threshold int
	// NWords caps the number of non-special symbols. Values <= 0 keep everything.
	NWords int
	// PaddingFactor is the alignment (Len()+NumExtraSymbols) is padded to.
	// Values <= 1 disable padding.
	PaddingFactor int
	// NumExtraSymbols is how many symbols Extend will append later.
	NumExtraSymbols int
}

// Finalize returns the dictionary: specials first in their original order,
// then symbols by descending count with ties broken by first-seen order, then
// padding placeholders.
func (b *Builder) Finalize(opts FinalizeOptions) *Dictionary {
	type ranked struct {
		symbol string
		count  int
		seen   int
	}

	rs := make([]ranked, len(b.order))
	for i, s := range b.order {
		rs[i] = ranked{symbol: s, count: b.counts[s], seen: i}
	}

	slices.SortFunc(rs, func(a, b ranked) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}

		return cmp.Compare(a.seen, b.seen)
	})

	entries := make([]Entry, 0, len(b.specials)+len(rs))
	for _, s := range b.specials {
		entries = append(entries, Entry{Symbol: s, Count: 1, Special: true})
	}

	var kept int
	for _, r := range rs {
		if opts.Threshold > 0 && r.count < opts.Threshold {
			break
		}

		if opts.NWords > 0 && kept >= opts.NWords {
			break
		}

		entries = append(entries, Entry{Symbol: r.symbol, Count: r.count})
		kept++
	}

	return newDictionary(entries).Pad(opts.NumExtraSymbols, opts.PaddingFactor)
}
