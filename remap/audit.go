package remap

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/vocabtrim/vocabtrim/vocab"
)

// AuditRecord describes one mapping for later inspection.
type AuditRecord struct {
	Languages []string `cbor:"langs"`
	Symbols   []string `cbor:"symbols"`
	Mapping   []int    `cbor:"mapping"`
	Mapped    int      `cbor:"mapped"`
	Unmapped  int      `cbor:"unmapped"`
}

// WriteCBOR encodes m together with the symbols of next.
func (m Mapping) WriteCBOR(w io.Writer, next *vocab.Dictionary, langs []string) error {
	r := AuditRecord{
		Languages: langs,
		Symbols:   next.Symbols(),
		Mapping:   m,
	}
	r.Mapped, r.Unmapped = m.Stats()

	return cbor.NewEncoder(w).Encode(r)
}

// ReadAudit decodes a record written by WriteCBOR.
func ReadAudit(r io.Reader) (*AuditRecord, error) {
	var a AuditRecord
	if err := cbor.NewDecoder(r).Decode(&a); err != nil {
		return nil, err
	}

	return &a, nil
}
