package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/d4l3k/go-bfloat16"
	"github.com/google/go-cmp/cmp"
	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func floatTensor(size, stride []int, data ...float32) *pytorch.Tensor {
	return &pytorch.Tensor{
		Source: &pytorch.FloatStorage{Data: data},
		Size:   size,
		Stride: stride,
	}
}

func f32s(t *testing.T, tt *Tensor) []float32 {
	t.Helper()

	vs, err := tt.Float32s()
	require.NoError(t, err)
	return vs
}

func TestGather(t *testing.T) {
	data := []int{0, 1, 2, 3, 4, 5}

	cases := []struct {
		name   string
		offset int
		size   []int
		stride []int
		want   []int
	}{
		{"contiguous", 0, []int{2, 3}, []int{3, 1}, []int{0, 1, 2, 3, 4, 5}},
		{"offset", 2, []int{2, 2}, []int{2, 1}, []int{2, 3, 4, 5}},
		{"transposed", 0, []int{3, 2}, []int{1, 3}, []int{0, 3, 1, 4, 2, 5}},
		{"every other", 0, []int{3}, []int{2}, []int{0, 2, 4}},
		{"broadcast", 1, []int{2, 2}, []int{0, 1}, []int{1, 2, 1, 2}},
		{"scalar", 4, []int{}, []int{}, []int{4}},
		{"empty", 0, []int{0, 3}, []int{3, 1}, []int{}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gather(data, tt.offset, tt.size, tt.stride)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("unexpected values (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGatherErrors(t *testing.T) {
	data := []int{0, 1, 2, 3}

	_, err := gather(data, 0, []int{2, 2}, []int{2})
	assert.Error(t, err)

	_, err = gather(data, 2, []int{2, 2}, []int{2, 1})
	assert.Error(t, err)

	_, err = gather(data, 0, []int{2, 2}, []int{1, 4})
	assert.Error(t, err)
}

func TestFromPickleStateDict(t *testing.T) {
	state := types.NewOrderedDict()
	state.Set("encoder.embed_tokens.weight", floatTensor([]int{2, 2}, []int{2, 1}, 1, 2, 3, 4))
	state.Set("encoder.version", &pytorch.Tensor{
		Source: &pytorch.LongStorage{Data: []int64{3}},
		Size:   []int{1},
		Stride: []int{1},
	})
	state.Set("decoder.output_projection.weight", floatTensor([]int{2, 2}, []int{1, 2}, 1, 2, 3, 4))

	root := types.NewDict()
	root.Set("args", types.NewDict())
	root.Set("model", state)
	root.Set("epoch", 12)
	root.Set("arch", "mbart_large")

	c, err := fromPickle(root)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"format":      "pt",
		"torch.args":  "{}",
		"torch.epoch": "12",
		"torch.arch":  `"mbart_large"`,
	}, c.Metadata)

	var names []string
	for _, tt := range c.Tensors() {
		names = append(names, tt.Name)
	}
	assert.Equal(t, []string{"encoder.embed_tokens.weight", "encoder.version", "decoder.output_projection.weight"}, names)

	embed, ok := c.Tensor("encoder.embed_tokens.weight")
	require.True(t, ok)
	assert.Equal(t, "F32", embed.DType)
	assert.Equal(t, []int64{2, 2}, embed.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4}, f32s(t, embed))

	version, ok := c.Tensor("encoder.version")
	require.True(t, ok)
	assert.Equal(t, "I64", version.DType)
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(version.Data))

	// a transposed view is written out row-major
	proj, ok := c.Tensor("decoder.output_projection.weight")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 3, 2, 4}, f32s(t, proj))
}

func TestFromPickleBareStateDict(t *testing.T) {
	state := types.NewDict()
	state.Set("w", floatTensor([]int{3}, []int{1}, 1, 2, 3))
	state.Set("step", 5)

	c, err := fromPickle(state)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, map[string]string{"format": "pt", "torch.step": "5"}, c.Metadata)
}

func TestFromPickleCarriesEntries(t *testing.T) {
	args := types.NewDict()
	args.Set("arch", "mbart_large")
	args.Set("share_all_embeddings", true)

	history := types.NewDict()
	history.Set("criterion_name", "LabelSmoothedCrossEntropyCriterion")
	history.Set("num_updates", 100)

	extra := types.NewDict()
	extra.Set("epoch", 3)
	extra.Set("val_loss", math.Inf(1))

	moments := types.NewDict()
	moments.Set("exp_avg", floatTensor([]int{2}, []int{1}, 0.5, -0.5))
	optState := types.NewDict()
	optState.Set(0, moments)
	optimizer := types.NewDict()
	optimizer.Set("state", optState)

	state := types.NewOrderedDict()
	state.Set("encoder.embed_tokens.weight", floatTensor([]int{2, 2}, []int{2, 1}, 1, 2, 3, 4))
	state.Set("_version", 2)

	root := types.NewDict()
	root.Set("args", &pyObject{Class: &pyClass{Module: "argparse", Name: "Namespace"}, Attrs: args})
	root.Set("model", state)
	root.Set("optimizer_history", types.NewListFromSlice([]any{history}))
	root.Set("extra_state", extra)
	root.Set("last_optimizer_state", optimizer)

	c, err := fromPickle(root)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, Save(c, path))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"format":                     "pt",
		"torch.model._version":       "2",
		"torch.args":                 `{"__class__":"argparse.Namespace","__dict__":{"arch":"mbart_large","share_all_embeddings":true}}`,
		"torch.optimizer_history":    `[{"criterion_name":"LabelSmoothedCrossEntropyCriterion","num_updates":100}]`,
		"torch.extra_state":          `{"epoch":3,"val_loss":"+Inf"}`,
		"torch.last_optimizer_state": `{"state":{"0":{"exp_avg":{"__tensor__":"torch.last_optimizer_state.state.0.exp_avg"}}}}`,
	}, got.Metadata)

	var names []string
	for _, tt := range got.Tensors() {
		names = append(names, tt.Name)
	}
	assert.ElementsMatch(t, []string{"encoder.embed_tokens.weight", "torch.last_optimizer_state.state.0.exp_avg"}, names)

	expAvg, ok := got.Tensor("torch.last_optimizer_state.state.0.exp_avg")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.5}, f32s(t, expAvg))
}

// argparse.Namespace(arch='mbart_large', langs='en_XX,hi_IN', max_epoch=12)
// pickled with protocol 2
const namespacePickle = "\x80\x02cargparse\nNamespace\nq\x00)\x81q\x01}q\x02(X\x04\x00\x00\x00archq\x03X\x0b\x00\x00\x00mbart_largeq\x04X\x05\x00\x00\x00langsq\x05X\x0b\x00\x00\x00en_XX,hi_INq\x06X\t\x00\x00\x00max_epochq\x07K\x0cub."

func TestUnpickleNamespace(t *testing.T) {
	u := pickle.NewUnpickler(strings.NewReader(namespacePickle))
	u.FindClass = findClass

	v, err := u.Load()
	require.NoError(t, err)

	c := New(map[string]string{})
	require.NoError(t, carry(c, "torch.args", v))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.Metadata["torch.args"]), &got))
	assert.Equal(t, map[string]any{
		"__class__": "argparse.Namespace",
		"__dict__":  map[string]any{
			"arch":      "mbart_large",
			"langs":     "en_XX,hi_IN",
			"max_epoch": float64(12),
		},
	}, got)
}

func TestFromPickleErrors(t *testing.T) {
	_, err := fromPickle([]any{1, 2})
	assert.Error(t, err)

	state := types.NewDict()
	state.Set(1, floatTensor([]int{1}, []int{1}, 1))
	_, err = fromPickle(state)
	assert.Error(t, err)

	root := types.NewDict()
	root.Set("model", types.NewDict())
	root.Set("seen", types.NewSet())
	_, err = fromPickle(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "torch.seen")
}

func TestFromTorchTensorHalf(t *testing.T) {
	values := []float32{1, -2.5, 0.099975586, float32(math.Inf(1))}

	half, err := fromTorchTensor("h", &pytorch.Tensor{
		Source: &pytorch.HalfStorage{Data: values},
		Size:   []int{4},
		Stride: []int{1},
	})
	require.NoError(t, err)
	assert.Equal(t, "F16", half.DType)
	require.Len(t, half.Data, 8)
	for i, v := range values {
		assert.Equal(t, float16.Fromfloat32(v).Bits(), binary.LittleEndian.Uint16(half.Data[2*i:]))
	}
	assert.Equal(t, values, f32s(t, half))

	bf, err := fromTorchTensor("b", &pytorch.Tensor{
		Source: &pytorch.BFloat16Storage{Data: []float32{1, -2.5, 3}},
		Size:   []int{3},
		Stride: []int{1},
	})
	require.NoError(t, err)
	assert.Equal(t, "BF16", bf.DType)
	assert.Equal(t, bfloat16.EncodeFloat32([]float32{1, -2.5, 3}), bf.Data)
	assert.Equal(t, []float32{1, -2.5, 3}, f32s(t, bf))
}
