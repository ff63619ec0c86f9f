package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

const overwriteFlag = "#fairseq:overwrite"

type loadOptions struct {
	specials []string
}

type LoadOption func(*loadOptions)

// ReadSpecials replaces DefaultSpecials as the implicit prefix of a loaded
// dictionary. A dictionary built with WithSpecials is read back with the same
// symbols.
func ReadSpecials(symbols ...string) LoadOption {
	return func(o *loadOptions) {
		o.specials = slices.Clone(symbols)
	}
}

// ReadExtraSpecials appends symbols to the implicit prefix.
func ReadExtraSpecials(symbols ...string) LoadOption {
	return func(o *loadOptions) {
		o.specials = append(o.specials, symbols...)
	}
}

// Load reads a dictionary file. Special symbols are implicit: they are
// prepended, by default in DefaultSpecials order, and are not expected in the
// file.
func Load(path string, opts ...LoadOption) (*Dictionary, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &errtypes.MissingFileError{Path: path}
	} else if err != nil {
		return nil, &errtypes.DictionaryLoadError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	return Read(f, path, opts...)
}

// Read parses one "<symbol> <count>" pair per line. The separator may be a
// space or a tab. A trailing "#fairseq:overwrite" flag allows a line to set
// the count of a symbol that is already present.
func Read(r io.Reader, name string, opts ...LoadOption) (*Dictionary, error) {
	o := loadOptions{specials: slices.Clone(DefaultSpecials)}
	for _, opt := range opts {
		opt(&o)
	}

	var entries []Entry
	indices := make(map[string]int)
	for _, s := range o.specials {
		if _, ok := indices[s]; ok {
			return nil, &errtypes.DuplicateSymbolError{Symbol: s}
		}

		indices[s] = len(entries)
		entries = append(entries, Entry{Symbol: s, Count: 1, Special: true})
	}

	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := br.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			break
		} else if err != nil && !errors.Is(err, io.EOF) {
			return nil, &errtypes.DictionaryLoadError{Path: name, Line: n, Reason: err.Error()}
		}

		symbol, count, overwrite, perr := parseLine(line)
		if perr != nil {
			return nil, &errtypes.DictionaryLoadError{Path: name, Line: n, Reason: perr.Error()}
		}

		if i, ok := indices[symbol]; ok {
			if !overwrite {
				return nil, &errtypes.DictionaryLoadError{
					Path:   name,
					Line:   n,
					Reason: fmt.Sprintf("duplicate symbol %q, add %s to overwrite", symbol, overwriteFlag),
				}
			}

			entries[i].Count = count
			continue
		}

		indices[symbol] = len(entries)
		entries = append(entries, Entry{Symbol: symbol, Count: count})
	}

	return newDictionary(entries), nil
}

func parseLine(line string) (symbol string, count int, overwrite bool, err error) {
	line = strings.TrimRight(line, "\r\n \t")

	field, rest, ok := cutLast(line)
	if ok && field == overwriteFlag {
		overwrite = true
		field, rest, ok = cutLast(rest)
	}

	if !ok || rest == "" {
		return "", 0, false, fmt.Errorf("expected '<symbol> <count>', got %q", line)
	}

	count, err = strconv.Atoi(field)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid count %q", field)
	}

	if count < 0 {
		return "", 0, false, fmt.Errorf("negative count %d", count)
	}

	return rest, count, overwrite, nil
}

// cutLast splits s around its last run of spaces or tabs.
func cutLast(s string) (last, rest string, ok bool) {
	i := strings.LastIndexAny(s, " \t")
	if i < 0 {
		return "", s, false
	}

	return s[i+1:], strings.TrimRight(s[:i], " \t"), true
}

// WriteTo writes every non-special entry as "<symbol> <count>" in index order.
func (d *Dictionary) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)

	var n int64
	for _, e := range d.entries {
		if e.Special {
			continue
		}

		m, err := fmt.Fprintf(bw, "%s %d\n", e.Symbol, e.Count)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}

	return n, bw.Flush()
}

// Save writes the dictionary to path. The file only appears once it has been
// written and synced completely; on error the temporary file is removed.
func (d *Dictionary) Save(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}

	if _, err := d.WriteTo(f); err != nil {
		return fail(err)
	}

	if err := f.Sync(); err != nil {
		return fail(err)
	}

	if err := f.Close(); err != nil {
		return fail(err)
	}

	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return fail(err)
	}

	if err := os.Rename(f.Name(), path); err != nil {
		return fail(err)
	}

	return nil
}
