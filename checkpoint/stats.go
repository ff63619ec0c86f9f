package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"
	"github.com/x448/float16"
)

// Float32s decodes a floating point tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	switch t.DType {
	case "F32":
		f32s := make([]float32, len(t.Data)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:]))
		}
		return f32s, nil
	case "F64":
		f32s := make([]float32, len(t.Data)/8)
		for i := range f32s {
			f32s[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(t.Data[8*i:])))
		}
		return f32s, nil
	case "F16":
		f32s := make([]float32, len(t.Data)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(t.Data[2*i:])).Float32()
		}
		return f32s, nil
	case "BF16":
		return bfloat16.DecodeFloat32(t.Data), nil
	default:
		return nil, fmt.Errorf("tensor %q: %s is not a floating point type", t.Name, t.DType)
	}
}

// Dense returns the tensor decoded to float32 as a dense tensor of the same shape.
func (t *Tensor) Dense() (*tensor.Dense, error) {
	f32s, err := t.Float32s()
	if err != nil {
		return nil, err
	}

	dims := make([]int, len(t.Shape))
	for i := range t.Shape {
		dims[i] = int(t.Shape[i])
	}

	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(f32s)), nil
}

type EmbeddingStats struct {
	Rows     int
	Dim      int
	ZeroRows int
	MeanNorm float64
}

// Stats summarizes a 2-D embedding matrix: how many rows are all zero and the
// mean L2 norm of the remaining rows.
func Stats(t *Tensor) (EmbeddingStats, error) {
	if len(t.Shape) != 2 {
		return EmbeddingStats{}, fmt.Errorf("tensor %q: expected 2 dimensions, got %v", t.Name, t.Shape)
	}

	s := EmbeddingStats{Rows: int(t.Shape[0]), Dim: int(t.Shape[1])}
	if s.Rows == 0 || s.Dim == 0 {
		s.ZeroRows = s.Rows
		return s, nil
	}

	dense, err := t.Dense()
	if err != nil {
		return s, err
	}

	rows, err := native.MatrixF32(dense)
	if err != nil {
		return s, err
	}

	var sum float64
	for _, row := range rows {
		var sq float64
		for _, v := range row {
			sq += float64(v) * float64(v)
		}

		if sq == 0 {
			s.ZeroRows++
			continue
		}

		sum += math.Sqrt(sq)
	}

	if n := s.Rows - s.ZeroRows; n > 0 {
		s.MeanNorm = sum / float64(n)
	}

	return s, nil
}
