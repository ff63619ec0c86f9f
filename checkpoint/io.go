package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/vocabtrim/vocabtrim/types/errtypes"
)

// Load reads a checkpoint. Safetensors content is recognized by its header
// whatever the file is called; otherwise .pt, .pth, .bin and .ckpt files are
// read as torch pickles.
func Load(path string) (*Checkpoint, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &errtypes.MissingFileError{Path: path}
	} else if err != nil {
		return nil, err
	}

	if fi.Size() == 0 {
		return nil, &errtypes.CheckpointLoadError{Path: path, Reason: "empty file"}
	}

	isSafetensors, err := sniffSafetensors(path, fi.Size())
	if err != nil {
		return nil, err
	}

	var c *Checkpoint
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case isSafetensors, ext == ".safetensors":
		var b []byte
		if b, err = os.ReadFile(path); err != nil {
			return nil, err
		}
		c, err = ReadSafetensors(b)
	case slices.Contains([]string{".pt", ".pth", ".bin", ".ckpt"}, ext):
		c, err = loadTorch(path)
	default:
		return nil, &errtypes.CheckpointLoadError{Path: path, Reason: fmt.Sprintf("unknown checkpoint format %q", ext)}
	}

	if err != nil {
		return nil, &errtypes.CheckpointLoadError{Path: path, Reason: err.Error()}
	}

	return c, nil
}

// sniffSafetensors reports whether the file starts with a plausible
// safetensors header: a little-endian length that fits the file followed by
// a JSON object.
func sniffSafetensors(path string, size int64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var b [9]byte
	if _, err := io.ReadFull(f, b[:]); errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	n := binary.LittleEndian.Uint64(b[:8])
	return n > 0 && n <= maxHeaderSize && int64(n) <= size-8 && b[8] == '{', nil
}

type saveOptions struct {
	tmpDir string
}

type SaveOption func(*saveOptions)

// WithTempDir stages the file in dir before it is moved into place.
func WithTempDir(dir string) SaveOption {
	return func(o *saveOptions) {
		o.tmpDir = dir
	}
}

// Save writes c as safetensors to path, which must carry the .safetensors
// extension. The output appears only once it is complete; on error nothing is
// left behind.
func Save(c *Checkpoint, path string, opts ...SaveOption) error {
	if ext := filepath.Ext(path); !strings.EqualFold(ext, ".safetensors") {
		return fmt.Errorf("%s: checkpoints are written as safetensors, use the .safetensors extension instead of %q", path, ext)
	}

	o := saveOptions{tmpDir: filepath.Dir(path)}
	for _, opt := range opts {
		opt(&o)
	}

	if o.tmpDir == "" {
		o.tmpDir = filepath.Dir(path)
	}

	f, err := os.CreateTemp(o.tmpDir, filepath.Base(path)+".*.partial")
	if err != nil {
		return err
	}

	if err := writeFile(f, func(w io.Writer) error { return WriteSafetensors(w, c) }); err != nil {
		return err
	}

	return publish(f.Name(), path)
}

// writeFile runs fn against f, syncs and closes it, removing f on failure.
func writeFile(f *os.File, fn func(io.Writer) error) error {
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	if err := os.Chmod(f.Name(), 0o644); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	return nil
}

// publish renames tmp to path. A staging file on another filesystem is first
// copied next to path so the final step is still a rename.
func publish(tmp, path string) error {
	err := os.Rename(tmp, path)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		if err != nil {
			_ = os.Remove(tmp)
		}
		return err
	}

	defer os.Remove(tmp)

	src, err := os.Open(tmp)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.partial")
	if err != nil {
		return err
	}

	if err := writeFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	}); err != nil {
		return err
	}

	if err := os.Rename(dst.Name(), path); err != nil {
		_ = os.Remove(dst.Name())
		return err
	}

	return nil
}
