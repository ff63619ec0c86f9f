package checkpoint

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// pyClass stands in for any python class gopickle does not know, such as the
// argparse.Namespace holding fairseq arguments.
type pyClass struct {
	Module string
	Name   string
}

func findClass(module, name string) (any, error) {
	return &pyClass{Module: module, Name: name}, nil
}

func (c *pyClass) PyNew(args ...any) (any, error) {
	return &pyObject{Class: c, Args: args, Attrs: types.NewDict()}, nil
}

func (c *pyClass) Call(args ...any) (any, error) {
	return c.PyNew(args...)
}

// pyObject is an instance of a pyClass rebuilt from its constructor
// arguments and pickled state.
type pyObject struct {
	Class *pyClass
	Args  []any
	Attrs *types.Dict
	State any
}

func (o *pyObject) PySetState(state any) error {
	switch s := state.(type) {
	case *types.Dict:
		for _, e := range *s {
			o.Attrs.Set(e.Key, e.Value)
		}
		return nil
	case *types.Tuple:
		// (__dict__, __slots__) pair, either of which may be None
		if s.Len() == 2 {
			for _, part := range *s {
				if _, ok := part.(*types.Dict); !ok && part != nil {
					o.State = state
					return nil
				}
			}

			for _, part := range *s {
				if part != nil {
					_ = o.PySetState(part)
				}
			}
			return nil
		}
	}

	o.State = state
	return nil
}

// carry stores v as JSON metadata under key. Tensors found inside v are
// added to c, named by their path below key, and referenced from the JSON
// as {"__tensor__": name}.
func carry(c *Checkpoint, key string, v any) error {
	j, err := jsonValue(c, key, v)
	if err != nil {
		return err
	}

	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	c.Metadata[key] = string(b)
	return nil
}

func jsonValue(c *Checkpoint, path string, v any) (any, error) {
	switch v := v.(type) {
	case nil, string, bool, int, int32, int64:
		return v, nil
	case float64:
		switch {
		case math.IsNaN(v):
			return "NaN", nil
		case math.IsInf(v, 1):
			return "+Inf", nil
		case math.IsInf(v, -1):
			return "-Inf", nil
		}
		return v, nil
	case *big.Int:
		return json.Number(v.String()), nil
	case []byte:
		return v, nil
	case *types.ByteArray:
		return []byte(*v), nil
	case *types.List:
		return jsonSlice(c, path, *v)
	case *types.Tuple:
		return jsonSlice(c, path, *v)
	case *types.Dict:
		m := make(map[string]any, v.Len())
		for _, e := range *v {
			if err := jsonEntry(c, path, m, e.Key, e.Value); err != nil {
				return nil, err
			}
		}
		return m, nil
	case *types.OrderedDict:
		m := make(map[string]any, v.Len())
		for e := v.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if err := jsonEntry(c, path, m, entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
		return m, nil
	case *pyObject:
		obj := map[string]any{"__class__": v.Class.Module + "." + v.Class.Name}
		if len(v.Args) > 0 {
			args, err := jsonSlice(c, path, v.Args)
			if err != nil {
				return nil, err
			}
			obj["__args__"] = args
		}

		attrs, err := jsonValue(c, path, v.Attrs)
		if err != nil {
			return nil, err
		}
		obj["__dict__"] = attrs

		if v.State != nil {
			if obj["__state__"], err = jsonValue(c, path, v.State); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case *pyClass:
		return map[string]any{"__class__": v.Module + "." + v.Name}, nil
	case *pytorch.Tensor:
		t, err := fromTorchTensor(path, v)
		if err != nil {
			return nil, err
		}

		if err := c.Add(t); err != nil {
			return nil, err
		}
		return map[string]any{"__tensor__": path}, nil
	default:
		return nil, fmt.Errorf("%s: cannot carry value of type %T", path, v)
	}
}

func jsonSlice(c *Checkpoint, path string, vs []any) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		var err error
		if out[i], err = jsonValue(c, path+"."+strconv.Itoa(i), v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func jsonEntry(c *Checkpoint, path string, m map[string]any, k, v any) error {
	var key string
	switch k := k.(type) {
	case string:
		key = k
	case int, int64, bool:
		key = fmt.Sprint(k)
	default:
		return fmt.Errorf("%s: cannot carry key of type %T", path, k)
	}

	var err error
	m[key], err = jsonValue(c, path+"."+key, v)
	return err
}
