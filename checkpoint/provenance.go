package checkpoint

import (
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const provenancePrefix = "vocabtrim."

// Provenance records how a checkpoint's embeddings were remapped. It is stored
// in the checkpoint metadata under vocabtrim.* keys.
type Provenance struct {
	Source       string `mapstructure:"vocabtrim.source"`
	Dictionary   string `mapstructure:"vocabtrim.dictionary"`
	Languages    string `mapstructure:"vocabtrim.langs"`
	Embeddings   string `mapstructure:"vocabtrim.embeddings"`
	OldVocabSize int    `mapstructure:"vocabtrim.old_vocab_size"`
	NewVocabSize int    `mapstructure:"vocabtrim.new_vocab_size"`
	Mapped       int    `mapstructure:"vocabtrim.mapped"`
	Unmapped     int    `mapstructure:"vocabtrim.unmapped"`
}

// Apply writes p into metadata.
func (p Provenance) Apply(metadata map[string]string) {
	metadata[provenancePrefix+"source"] = p.Source
	metadata[provenancePrefix+"dictionary"] = p.Dictionary
	metadata[provenancePrefix+"langs"] = p.Languages
	metadata[provenancePrefix+"embeddings"] = p.Embeddings
	metadata[provenancePrefix+"old_vocab_size"] = strconv.Itoa(p.OldVocabSize)
	metadata[provenancePrefix+"new_vocab_size"] = strconv.Itoa(p.NewVocabSize)
	metadata[provenancePrefix+"mapped"] = strconv.Itoa(p.Mapped)
	metadata[provenancePrefix+"unmapped"] = strconv.Itoa(p.Unmapped)
}

// DecodeProvenance reads the vocabtrim.* keys of metadata. It reports false if
// the checkpoint was not produced by remap.
func DecodeProvenance(metadata map[string]string) (*Provenance, bool, error) {
	input := make(map[string]any)
	for k, v := range metadata {
		if strings.HasPrefix(k, provenancePrefix) {
			input[k] = v
		}
	}

	if len(input) == 0 {
		return nil, false, nil
	}

	var p Provenance
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, false, err
	}

	if err := dec.Decode(input); err != nil {
		return nil, false, err
	}

	return &p, true, nil
}
