package vocab

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

func writeCorpus(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestFinalizeFrequencyOrder(t *testing.T) {
	b := NewBuilder(WithSpecials(BOS, EOS))
	for _, s := range []string{"a", "a", "b", "c"} {
		b.AddSymbol(s, 1)
	}

	d := b.Finalize(FinalizeOptions{PaddingFactor: 4, NumExtraSymbols: 3})

	assert.Zero(t, (d.Len()+3)%4)
	assert.Equal(t, 2, d.NumSpecial())
	if diff := cmp.Diff([]string{BOS, EOS, "a", "b", "c"}, d.Symbols()); diff != "" {
		t.Errorf("unexpected symbols (-want +got):\n%s", diff)
	}

	i, ok := d.Index("a")
	require.True(t, ok)
	assert.Equal(t, 2, d.Count(i))
}

func TestFinalizeDefaultSpecialsPadding(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, map[string]string{"train.txt": "a a b c\n"})

	b := NewBuilder()
	require.NoError(t, b.AddFile(filepath.Join(dir, "train.txt")))

	d := b.Finalize(FinalizeOptions{PaddingFactor: 4, NumExtraSymbols: 3})

	want := []string{BOS, Pad, EOS, Unk, "a", "b", "c", "madeupword0000", "madeupword0001"}
	if diff := cmp.Diff(want, d.Symbols()); diff != "" {
		t.Errorf("unexpected symbols (-want +got):\n%s", diff)
	}

	assert.Zero(t, (d.Len()+3)%4)
	assert.Zero(t, d.Count(d.Len()-1))
}

func TestFinalizeTieBreak(t *testing.T) {
	b := NewBuilder()
	b.AddSymbol("z", 1)
	b.AddSymbol("y", 1)
	b.AddSymbol("x", 1)
	b.AddSymbol("x", 1)
	b.AddSymbol("w", 1)

	d := b.Finalize(FinalizeOptions{})
	assert.Equal(t, []string{"x", "z", "y", "w"}, d.Symbols()[d.NumSpecial():])
}

func TestFinalizeThresholdAndNWords(t *testing.T) {
	b := NewBuilder()
	b.AddSymbol("rare", 1)
	b.AddSymbol("common", 5)
	b.AddSymbol("medium", 3)

	cases := []struct {
		name string
		opts FinalizeOptions
		want []string
	}{
		{"all", FinalizeOptions{}, []string{"common", "medium", "rare"}},
		{"threshold", FinalizeOptions{Threshold: 2}, []string{"common", "medium"}},
		{"nwords", FinalizeOptions{NWords: 1}, []string{"common"}},
		{"both", FinalizeOptions{Threshold: 4, NWords: 2}, []string{"common"}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			d := b.Finalize(tt.opts)
			assert.Equal(t, tt.want, d.Symbols()[d.NumSpecial():])
		})
	}
}

func TestSpecialPrefixStable(t *testing.T) {
	corpora := []string{
		"hello world\n<unk> hello\n",
		"zebra </s> apple apple\n",
		"",
	}

	for _, corpus := range corpora {
		b := NewBuilder(WithExtraSpecials("<sep>"))
		for _, line := range strings.Split(corpus, "\n") {
			for _, s := range TokenizeLine(line) {
				b.AddSymbol(s, 1)
			}
		}

		d := b.Finalize(FinalizeOptions{PaddingFactor: 8, NumExtraSymbols: 2})
		assert.Equal(t, []string{BOS, Pad, EOS, Unk, "<sep>"}, d.Symbols()[:5])
		assert.Equal(t, 5, d.NumSpecial())

		seen := make(map[string]bool)
		for _, s := range d.Symbols() {
			assert.False(t, seen[s], "symbol %q repeated", s)
			seen[s] = true
		}
	}
}

func TestAddFilesMatchesSequentialScan(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, map[string]string{
		"a.txt": "b c\nc d\n",
		"b.txt": "a b\n\n",
		"c.txt": "e a\nd\n",
		"d.txt": "e e e\n",
	})

	sequential := NewBuilder()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		require.NoError(t, sequential.AddFile(filepath.Join(dir, name)))
	}
	want := sequential.Finalize(FinalizeOptions{}).Entries()

	for _, workers := range []int{1, 2, 8} {
		b := NewBuilder(WithWorkers(workers))
		require.NoError(t, b.AddFiles(filepath.Join(dir, "*.txt")))

		if diff := cmp.Diff(want, b.Finalize(FinalizeOptions{}).Entries()); diff != "" {
			t.Errorf("workers=%d: unexpected entries (-want +got):\n%s", workers, diff)
		}
	}

	// e:4, then b, c, d, a with two each in first-seen order
	d := sequential.Finalize(FinalizeOptions{})
	assert.Equal(t, []string{"e", "b", "c", "d", "a"}, d.Symbols()[d.NumSpecial():])
}

func TestAddFilesNoMatch(t *testing.T) {
	b := NewBuilder()
	err := b.AddFiles(filepath.Join(t.TempDir(), "*.spm"))

	var missing *errtypes.MissingFileError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Path, "*.spm")
}

func TestAddFileMissing(t *testing.T) {
	err := NewBuilder().AddFile(filepath.Join(t.TempDir(), "nope.txt"))

	var missing *errtypes.MissingFileError
	require.ErrorAs(t, err, &missing)
}

func TestLineModes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.txt")
	writeCorpus(t, dir, map[string]string{"train.txt": "a b\n   \n# comment\nb\n"})

	// drops comment lines entirely
	tokenize := func(line string) []string {
		if strings.HasPrefix(line, "#") {
			return nil
		}
		return TokenizeLine(line)
	}

	t.Run("strict", func(t *testing.T) {
		err := NewBuilder(WithTokenizer(tokenize)).AddFile(path)

		var malformed *errtypes.MalformedLineError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, path, malformed.Path)
		assert.Equal(t, 3, malformed.Line)
	})

	t.Run("relaxed", func(t *testing.T) {
		b := NewBuilder(WithTokenizer(tokenize), WithLineMode(Relaxed))
		require.NoError(t, b.AddFile(path))

		d := b.Finalize(FinalizeOptions{})
		assert.Equal(t, []string{"b", "a"}, d.Symbols()[d.NumSpecial():])
	})

	t.Run("blank lines are never malformed", func(t *testing.T) {
		b := NewBuilder(WithTokenizer(func(string) []string { return nil }))
		writeCorpus(t, dir, map[string]string{"blank.txt": "\n \t\n\n"})
		require.NoError(t, b.AddFile(filepath.Join(dir, "blank.txt")))
		assert.Zero(t, b.Len())
	})
}

func TestFileDoneCallback(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir, map[string]string{
		"1.txt": "a\n",
		"2.txt": "b\nc\n",
		"3.txt": "d",
	})

	var files, lines atomic.Int64
	b := NewBuilder(WithWorkers(3), WithFileDone(func(_ string, n int) {
		files.Add(1)
		lines.Add(int64(n))
	}))

	require.NoError(t, b.AddFiles(filepath.Join(dir, "*.txt")))
	assert.Equal(t, int64(3), files.Load())
	assert.Equal(t, int64(4), lines.Load())
}

func TestLineMode(t *testing.T) {
	assert.Equal(t, "strict", Strict.String())
	assert.Equal(t, "relaxed", Relaxed.String())
	assert.Equal(t, "LineMode(7)", LineMode(7).String())
}
