package vocab

import "strings"

// Tokenizer splits one line of text into symbols.
type Tokenizer func(line string) []string

// TokenizeLine collapses runs of whitespace and splits on them. Corpora are
// expected to be pre-tokenized, so this is the default.
func TokenizeLine(line string) []string {
	return strings.Fields(line)
}
