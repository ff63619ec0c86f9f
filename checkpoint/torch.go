package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/x448/float16"
)

// stateKey holds the parameters in fairseq checkpoints.
const stateKey = "model"

func loadTorch(path string) (*Checkpoint, error) {
	pt, err := pytorch.LoadWithUnpickler(path, func(r io.Reader) pickle.Unpickler {
		u := pickle.NewUnpickler(r)
		u.FindClass = findClass
		return u
	})
	if err != nil {
		return nil, err
	}

	return fromPickle(pt)
}

// fromPickle converts an unpickled torch object. Either the object is a state
// dict itself or a dict whose "model" entry is one. Every entry that is not a
// state tensor is carried as JSON metadata under "torch.<key>"; non-tensor
// entries of a nested state dict use "torch.model.<key>".
func fromPickle(v any) (*Checkpoint, error) {
	c := New(map[string]string{"format": "pt"})

	state, prefix := v, "torch."
	root, nested := v.(*types.Dict)
	if nested {
		var m any
		if m, nested = root.Get(stateKey); nested {
			state, prefix = m, "torch."+stateKey+"."
		}
	}

	var err error
	visit := func(k, v any) bool {
		name, ok := k.(string)
		if !ok {
			err = fmt.Errorf("unexpected state dict key %v", k)
			return false
		}

		pt, ok := v.(*pytorch.Tensor)
		if !ok {
			err = carry(c, prefix+name, v)
			return err == nil
		}

		var t *Tensor
		if t, err = fromTorchTensor(name, pt); err != nil {
			return false
		}

		err = c.Add(t)
		return err == nil
	}

	switch s := state.(type) {
	case *types.Dict:
		for _, e := range *s {
			if !visit(e.Key, e.Value) {
				break
			}
		}
	case *types.OrderedDict:
		for e := s.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if !visit(entry.Key, entry.Value) {
				break
			}
		}
	default:
		return nil, fmt.Errorf("unsupported state dict type %T", state)
	}

	if err != nil {
		return nil, err
	}

	if nested {
		for _, e := range *root {
			name, ok := e.Key.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected checkpoint key %v", e.Key)
			}

			if name == stateKey {
				continue
			}

			if err := carry(c, "torch."+name, e.Value); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

func fromTorchTensor(name string, pt *pytorch.Tensor) (*Tensor, error) {
	t := &Tensor{Name: name, Shape: make([]int64, len(pt.Size))}
	for i, d := range pt.Size {
		t.Shape[i] = int64(d)
	}

	var err error
	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		t.DType = "F32"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.DoubleStorage:
		t.DType = "F64"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.HalfStorage:
		t.DType = "F16"
		var f32s []float32
		if f32s, err = gather(s.Data, pt.StorageOffset, pt.Size, pt.Stride); err == nil {
			u16s := make([]uint16, len(f32s))
			for i := range f32s {
				u16s[i] = float16.Fromfloat32(f32s[i]).Bits()
			}
			t.Data, err = encodeLE(u16s)
		}
	case *pytorch.BFloat16Storage:
		t.DType = "BF16"
		var f32s []float32
		if f32s, err = gather(s.Data, pt.StorageOffset, pt.Size, pt.Stride); err == nil {
			t.Data = bfloat16.EncodeFloat32(f32s)
		}
	case *pytorch.LongStorage:
		t.DType = "I64"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.IntStorage:
		t.DType = "I32"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.ShortStorage:
		t.DType = "I16"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.CharStorage:
		t.DType = "I8"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.ByteStorage:
		t.DType = "U8"
		t.Data, err = gatherLE(s.Data, pt)
	case *pytorch.BoolStorage:
		t.DType = "BOOL"
		t.Data, err = gatherLE(s.Data, pt)
	default:
		return nil, fmt.Errorf("tensor %q: unsupported storage %T", name, pt.Source)
	}

	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	return t, nil
}

func gatherLE[T any](data []T, pt *pytorch.Tensor) ([]byte, error) {
	vs, err := gather(data, pt.StorageOffset, pt.Size, pt.Stride)
	if err != nil {
		return nil, err
	}

	return encodeLE(vs)
}

func encodeLE(v any) ([]byte, error) {
	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// gather copies a strided view out of storage into a contiguous row-major slice.
func gather[T any](data []T, offset int, size, stride []int) ([]T, error) {
	if len(stride) != len(size) {
		return nil, fmt.Errorf("stride %v does not match size %v", stride, size)
	}

	n := 1
	for _, d := range size {
		n *= d
	}

	if n == 0 {
		return []T{}, nil
	}

	if isContiguous(size, stride) {
		if offset < 0 || offset+n > len(data) {
			return nil, fmt.Errorf("storage of %d elements too small for %d at offset %d", len(data), n, offset)
		}

		return slices.Clone(data[offset : offset+n]), nil
	}

	out := make([]T, 0, n)
	idx := make([]int, len(size))
	for range n {
		pos := offset
		for d := range idx {
			pos += idx[d] * stride[d]
		}

		if pos < 0 || pos >= len(data) {
			return nil, fmt.Errorf("strided index %d out of storage bounds %d", pos, len(data))
		}

		out = append(out, data[pos])

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < size[d] {
				break
			}
			idx[d] = 0
		}
	}

	return out, nil
}

func isContiguous(size, stride []int) bool {
	expected := 1
	for d := len(size) - 1; d >= 0; d-- {
		if size[d] != 1 && stride[d] != expected {
			return false
		}
		expected *= size[d]
	}

	return true
}
