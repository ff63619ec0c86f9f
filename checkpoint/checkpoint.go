// Package checkpoint reads and writes named-tensor checkpoints.
//
// A [Checkpoint] keeps every tensor as raw little-endian bytes. Tensors that
// are not replaced are written back exactly as they were read.
package checkpoint

import (
	"fmt"
	"slices"

	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

var dtypeSizes = map[string]int{
	"BOOL":    1,
	"U8":      1,
	"I8":      1,
	"F8_E4M3": 1,
	"F8_E5M2": 1,
	"I16":     2,
	"U16":     2,
	"F16":     2,
	"BF16":    2,
	"I32":     4,
	"U32":     4,
	"F32":     4,
	"I64":     8,
	"U64":     8,
	"F64":     8,
}

// DTypeSize returns the size in bytes of one element of dtype.
func DTypeSize(dtype string) (int, error) {
	if n, ok := dtypeSizes[dtype]; ok {
		return n, nil
	}

	return 0, fmt.Errorf("unknown data type: %s", dtype)
}

type Tensor struct {
	Name  string
	DType string
	Shape []int64
	Data  []byte
}

// Elements returns the number of elements implied by the shape.
func (t *Tensor) Elements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}

	return n
}

// Rows returns the size of the first dimension.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}

	return int(t.Shape[0])
}

// RowSize returns the number of bytes in one slice along the first dimension.
func (t *Tensor) RowSize() (int, error) {
	size, err := DTypeSize(t.DType)
	if err != nil {
		return 0, err
	}

	for _, d := range t.Shape[1:] {
		size *= int(d)
	}

	return size, nil
}

type Checkpoint struct {
	Metadata map[string]string

	tensors []*Tensor
	index   map[string]int
}

func New(metadata map[string]string) *Checkpoint {
	if metadata == nil {
		metadata = make(map[string]string)
	}

	return &Checkpoint{
		Metadata: metadata,
		index:    make(map[string]int),
	}
}

// Add appends a tensor. Names must be unique.
func (c *Checkpoint) Add(t *Tensor) error {
	if _, ok := c.index[t.Name]; ok {
		return fmt.Errorf("duplicate tensor name '%s' was found for this checkpoint", t.Name)
	}

	c.index[t.Name] = len(c.tensors)
	c.tensors = append(c.tensors, t)
	return nil
}

func (c *Checkpoint) Tensor(name string) (*Tensor, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}

	return c.tensors[i], true
}

// Replace swaps the tensor with the same name, keeping its position.
func (c *Checkpoint) Replace(t *Tensor) error {
	i, ok := c.index[t.Name]
	if !ok {
		return &errtypes.MissingTensorError{Name: t.Name}
	}

	c.tensors[i] = t
	return nil
}

// Tensors returns the tensors in file order.
func (c *Checkpoint) Tensors() []*Tensor {
	return slices.Clone(c.tensors)
}

func (c *Checkpoint) Len() int {
	return len(c.tensors)
}
