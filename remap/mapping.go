// Package remap carries pretrained embedding rows over to a new dictionary.
package remap

import (
	"github.com/vocabtrim/vocabtrim/types/errtypes"
	"github.com/vocabtrim/vocabtrim/vocab"
)

// Unmapped marks a new symbol with no pretrained counterpart.
const Unmapped = -1

// Mapping is indexed by new dictionary index and holds the old index of the
// same symbol, or Unmapped.
type Mapping []int

// BuildMapping looks up every symbol of next in prev. Symbols missing from
// prev are not an error; they map to Unmapped.
func BuildMapping(prev, next *vocab.Dictionary) Mapping {
	m := make(Mapping, next.Len())
	for i := range m {
		if j, ok := prev.Index(next.Symbol(i)); ok {
			m[i] = j
		} else {
			m[i] = Unmapped
		}
	}

	return m
}

func (m Mapping) Stats() (mapped, unmapped int) {
	for _, j := range m {
		if j == Unmapped {
			unmapped++
		} else {
			mapped++
		}
	}

	return mapped, unmapped
}

// CheckAligned verifies that the language tags and the mask fill the last
// NumExtraSymbols(langs) rows of both prev and next, in langs order, and that
// m carries each of those rows of next to its counterpart in prev. It fails
// when either dictionary was extended with a different language list, was not
// extended at all, or already held a tag before the tail.
func (m Mapping) CheckAligned(prev, next *vocab.Dictionary, langs []string) error {
	n := vocab.NumExtraSymbols(langs)
	symbols := make([]string, 0, n)
	for _, code := range langs {
		symbols = append(symbols, vocab.LanguageTag(code))
	}
	symbols = append(symbols, vocab.Mask)

	for k, s := range symbols {
		i, ok := next.Index(s)
		if !ok {
			return &errtypes.MisalignedLanguageError{Symbol: s, Index: -1}
		}

		if i != next.Len()-n+k {
			return &errtypes.MisalignedLanguageError{Symbol: s, Index: i}
		}

		j, ok := prev.Index(s)
		if !ok || j != prev.Len()-n+k || m[i] != j {
			return &errtypes.MisalignedLanguageError{Symbol: s, Index: i}
		}
	}

	return nil
}
