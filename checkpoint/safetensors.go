package checkpoint

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

const metadataKey = "__metadata__"

// maxHeaderSize bounds the JSON header so a corrupted length prefix cannot
// trigger a huge allocation.
const maxHeaderSize = 100 << 20

type safetensorMetadata struct {
	Type    string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets []int64 `json:"data_offsets"`
}

// ReadSafetensors parses a complete safetensors file held in b.
func ReadSafetensors(b []byte) (*Checkpoint, error) {
	if len(b) < 8 {
		return nil, errors.New("file too short for safetensors header")
	}

	n := binary.LittleEndian.Uint64(b[:8])
	if n > maxHeaderSize || n > uint64(len(b)-8) {
		return nil, fmt.Errorf("invalid header size %d", n)
	}

	var raws map[string]json.RawMessage
	if err := json.Unmarshal(b[8:8+n], &raws); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	data := b[8+n:]

	c := New(nil)
	if raw, ok := raws[metadataKey]; ok {
		if err := json.Unmarshal(raw, &c.Metadata); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", metadataKey, err)
		}
		delete(raws, metadataKey)
	}

	type entry struct {
		name string
		safetensorMetadata
	}

	entries := make([]entry, 0, len(raws))
	for name, raw := range raws {
		var v safetensorMetadata
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("error unmarshalling tensor %q: %w", name, err)
		}

		if len(v.Offsets) != 2 {
			return nil, fmt.Errorf("invalid offsets for %q: %v", name, v.Offsets)
		}

		if err := checkBeginEnd(int64(len(data)), v.Offsets[0], v.Offsets[1]); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		entries = append(entries, entry{name, v})
	}

	// keep the order tensors were laid out in
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.Offsets[0], b.Offsets[0]); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	for _, e := range entries {
		t := &Tensor{
			Name:  e.name,
			DType: e.Type,
			Shape: e.Shape,
			Data:  data[e.Offsets[0]:e.Offsets[1]:e.Offsets[1]],
		}

		if size, err := DTypeSize(t.DType); err == nil {
			if want := t.Elements() * int64(size); want != int64(len(t.Data)) {
				return nil, fmt.Errorf("tensor %q: expected %d bytes for shape %v, found %d", t.Name, want, t.Shape, len(t.Data))
			}
		}

		if err := c.Add(t); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func checkBeginEnd(size, begin, end int64) error {
	if begin < 0 {
		return fmt.Errorf("begin must not be negative: %d", begin)
	}
	if end < begin {
		return fmt.Errorf("end must be >= begin: %d < %d", end, begin)
	}
	if end > size {
		return fmt.Errorf("end must be <= size: %d > %d", end, size)
	}
	return nil
}

// WriteSafetensors encodes c. Tensor data is written in checkpoint order.
func WriteSafetensors(w io.Writer, c *Checkpoint) error {
	header := make(map[string]any, len(c.tensors)+1)
	if len(c.Metadata) > 0 {
		header[metadataKey] = c.Metadata
	}

	var offset int64
	for _, t := range c.tensors {
		header[t.Name] = safetensorMetadata{
			Type:    t.DType,
			Shape:   shapeOrEmpty(t.Shape),
			Offsets: []int64{offset, offset + int64(len(t.Data))},
		}
		offset += int64(len(t.Data))
	}

	bts, err := json.Marshal(header)
	if err != nil {
		return err
	}

	// the data section must start 8-byte aligned
	if pad := (8 - len(bts)%8) % 8; pad > 0 {
		bts = append(bts, bytes.Repeat([]byte{' '}, pad)...)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(bts))); err != nil {
		return err
	}

	if _, err := bw.Write(bts); err != nil {
		return err
	}

	for _, t := range c.tensors {
		if _, err := bw.Write(t.Data); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func shapeOrEmpty(shape []int64) []int64 {
	if shape == nil {
		return []int64{}
	}
	return shape
}
