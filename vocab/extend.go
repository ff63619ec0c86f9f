package vocab

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

var ErrNoLanguages = errors.New("no language codes given")

// LanguageTag returns the symbol reserved for a language code, e.g. [en_XX].
func LanguageTag(code string) string {
	return fmt.Sprintf("[%s]", code)
}

// ParseLanguages splits a comma separated list of language codes.
func ParseLanguages(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrNoLanguages
	}

	var langs []string
	for _, code := range strings.Split(s, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, fmt.Errorf("empty language code in %q", s)
		}

		if slices.Contains(langs, code) {
			return nil, fmt.Errorf("language %q listed twice", code)
		}

		langs = append(langs, code)
	}

	return langs, nil
}

// NumExtraSymbols is the number of symbols Extend appends for langs.
func NumExtraSymbols(langs []string) int {
	return len(langs) + 1
}

// Extend returns a copy of d with one tag per language, in order, followed by
// the mask symbol. Both dictionaries that will later be mapped onto each other
// must be extended with the same list.
func (d *Dictionary) Extend(langs []string) (*Dictionary, error) {
	entries := slices.Clone(d.entries)
	added := make(map[string]struct{}, len(langs)+1)

	appendSymbol := func(symbol string) error {
		if _, ok := d.indices[symbol]; ok {
			return &errtypes.DuplicateSymbolError{Symbol: symbol}
		}

		if _, ok := added[symbol]; ok {
			return &errtypes.DuplicateSymbolError{Symbol: symbol}
		}

		added[symbol] = struct{}{}
		entries = append(entries, Entry{Symbol: symbol, Count: 1})
		return nil
	}

	for _, code := range langs {
		if err := appendSymbol(LanguageTag(code)); err != nil {
			return nil, err
		}
	}

	if err := appendSymbol(Mask); err != nil {
		return nil, err
	}

	return newDictionary(entries), nil
}
