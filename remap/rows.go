package remap

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/vocabtrim/vocabtrim/checkpoint"
	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

// Rows returns a new [len(m), hidden] tensor with prev's dtype. Row i is a
// byte-for-byte copy of prev's row m[i]; unmapped rows are zero. prevLen is the
// size of the dictionary m was built from and must match prev's row count.
func Rows(prev *checkpoint.Tensor, m Mapping, prevLen int) (*checkpoint.Tensor, error) {
	if len(prev.Shape) != 2 {
		return nil, &errtypes.ShapeMismatchError{
			Tensor: prev.Name,
			Reason: fmt.Sprintf("expected 2 dimensions, got %v", prev.Shape),
		}
	}

	if prev.Rows() != prevLen {
		return nil, &errtypes.ShapeMismatchError{
			Tensor: prev.Name,
			Reason: fmt.Sprintf("%d rows but the dictionary has %d symbols", prev.Rows(), prevLen),
		}
	}

	rowSize, err := prev.RowSize()
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", prev.Name, err)
	}

	next := &checkpoint.Tensor{
		Name:  prev.Name,
		DType: prev.DType,
		Shape: []int64{int64(len(m)), prev.Shape[1]},
		Data:  make([]byte, len(m)*rowSize),
	}

	for i, j := range m {
		if j == Unmapped {
			continue
		}

		if j < 0 || j >= prevLen {
			return nil, &errtypes.ShapeMismatchError{
				Tensor: prev.Name,
				Reason: fmt.Sprintf("row %d maps to %d, outside 0..%d", i, j, prevLen-1),
			}
		}

		copy(next.Data[i*rowSize:(i+1)*rowSize], prev.Data[j*rowSize:(j+1)*rowSize])
	}

	return next, nil
}

type Report struct {
	Hidden   int
	Mapped   int
	Unmapped int
	Tensors  []string
}

// Embeddings remaps each named tensor of c in place. All of them must share
// the same hidden dimension. c is left untouched if any tensor fails.
func Embeddings(c *checkpoint.Checkpoint, names []string, m Mapping, prevLen int) (Report, error) {
	var r Report
	r.Mapped, r.Unmapped = m.Stats()

	var remapped []*checkpoint.Tensor
	for _, name := range names {
		prev, ok := c.Tensor(name)
		if !ok {
			return Report{}, &errtypes.MissingTensorError{Name: name}
		}

		if len(prev.Shape) == 2 {
			if hidden := int(prev.Shape[1]); r.Hidden == 0 {
				r.Hidden = hidden
			} else if hidden != r.Hidden {
				return Report{}, &errtypes.ShapeMismatchError{
					Tensor: name,
					Reason: fmt.Sprintf("hidden dimension %d differs from %d", hidden, r.Hidden),
				}
			}
		}

		next, err := Rows(prev, m, prevLen)
		if err != nil {
			return Report{}, err
		}

		slog.Debug("remapped embedding", "tensor", name, "from", prev.Shape, "to", next.Shape)
		remapped = append(remapped, next)
	}

	for _, t := range remapped {
		if err := c.Replace(t); err != nil {
			return Report{}, err
		}
	}

	r.Tensors = slices.Clone(names)
	return r, nil
}
