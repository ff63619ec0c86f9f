// Package vocab builds, pads, extends and persists fairseq-style symbol
// dictionaries.
//
// A [Dictionary] is immutable. It is produced by [Builder.Finalize] or [Load],
// and every further stage ([Dictionary.Pad], [Dictionary.Extend]) returns a
// new value.
package vocab

import (
	"fmt"
	"slices"
)

const (
	BOS  = "<s>"
	Pad  = "<pad>"
	EOS  = "</s>"
	Unk  = "<unk>"
	Mask = "<mask>"

	// PlaceholderFormat names the zero-count symbols used to pad a dictionary.
	PlaceholderFormat = "madeupword%04d"

	DefaultPaddingFactor = 8
)

// DefaultSpecials is the fixed special prefix of every dictionary, in index order.
var DefaultSpecials = []string{BOS, Pad, EOS, Unk}

type Entry struct {
	Symbol  string
	Count   int
	Special bool
}

type Dictionary struct {
	entries  []Entry
	indices  map[string]int
	nspecial int
}

func newDictionary(entries []Entry) *Dictionary {
	d := &Dictionary{
		entries: entries,
		indices: make(map[string]int, len(entries)),
	}

	for i, e := range entries {
		d.indices[e.Symbol] = i
		if e.Special {
			d.nspecial++
		}
	}

	return d
}

func (d *Dictionary) Len() int {
	return len(d.entries)
}

// NumSpecial returns the length of the special prefix.
func (d *Dictionary) NumSpecial() int {
	return d.nspecial
}

// Specials returns the special prefix in index order.
func (d *Dictionary) Specials() []string {
	specials := make([]string, 0, d.nspecial)
	for _, e := range d.entries[:d.nspecial] {
		specials = append(specials, e.Symbol)
	}
	return specials
}

func (d *Dictionary) Symbol(i int) string {
	return d.entries[i].Symbol
}

func (d *Dictionary) Count(i int) int {
	return d.entries[i].Count
}

// Index returns the position of symbol and whether it is present.
func (d *Dictionary) Index(symbol string) (int, bool) {
	i, ok := d.indices[symbol]
	return i, ok
}

func (d *Dictionary) Contains(symbol string) bool {
	_, ok := d.indices[symbol]
	return ok
}

// Entries returns a copy of the dictionary entries in index order.
func (d *Dictionary) Entries() []Entry {
	return slices.Clone(d.entries)
}

func (d *Dictionary) Symbols() []string {
	symbols := make([]string, len(d.entries))
	for i, e := range d.entries {
		symbols[i] = e.Symbol
	}

	return symbols
}

// Pad appends zero-count placeholders until (Len()+numExtra) is a multiple of
// factor. Placeholder names come from a counter starting at zero; values whose
// name is already taken are skipped so placeholders never collide with real
// symbols.
func (d *Dictionary) Pad(numExtra, factor int) *Dictionary {
	entries := slices.Clone(d.entries)
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Symbol] = struct{}{}
	}

	if factor > 1 {
		for i := 0; (len(entries)+numExtra)%factor != 0; i++ {
			symbol := fmt.Sprintf(PlaceholderFormat, i)
			if _, ok := seen[symbol]; ok {
				continue
			}

			seen[symbol] = struct{}{}
			entries = append(entries, Entry{Symbol: symbol})
		}
	}

	return newDictionary(entries)
}
