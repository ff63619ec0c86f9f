package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via VOCABTRIM_DEBUG in the environment. 1 enables debug logs, 2 trace logs.
	Debug int
	// Set via VOCABTRIM_EMBEDDINGS in the environment
	Embeddings []string
	// Set via VOCABTRIM_NUM_WORKERS in the environment
	NumWorkers int
	// Set via VOCABTRIM_PADDING_FACTOR in the environment
	PaddingFactor int
	// Set via VOCABTRIM_RELAXED in the environment
	Relaxed bool
	// Set via VOCABTRIM_TMPDIR in the environment
	TmpDir string
)

// DefaultEmbeddings are the mBART encoder and decoder token embeddings.
var DefaultEmbeddings = []string{
	"encoder.embed_tokens.weight",
	"decoder.embed_tokens.weight",
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"VOCABTRIM_CONFIG":         {"VOCABTRIM_CONFIG", ConfigPath(), "Path to a TOML configuration file"},
		"VOCABTRIM_DEBUG":          {"VOCABTRIM_DEBUG", Debug, "Show additional debug information (e.g. VOCABTRIM_DEBUG=1, 2 for trace)"},
		"VOCABTRIM_EMBEDDINGS":     {"VOCABTRIM_EMBEDDINGS", Embeddings, "Comma separated embedding tensors to remap"},
		"VOCABTRIM_NUM_WORKERS":    {"VOCABTRIM_NUM_WORKERS", NumWorkers, "Corpus files scanned in parallel (default 4)"},
		"VOCABTRIM_PADDING_FACTOR": {"VOCABTRIM_PADDING_FACTOR", PaddingFactor, "Dictionary size alignment (default 8)"},
		"VOCABTRIM_RELAXED":        {"VOCABTRIM_RELAXED", Relaxed, "Skip corpus lines that produce no symbols instead of failing"},
		"VOCABTRIM_TMPDIR":         {"VOCABTRIM_TMPDIR", TmpDir, "Location for temporary files"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// lookup prefers the environment and falls back to the configuration file.
func lookup(key string) string {
	if v := clean(key); v != "" {
		return v
	}

	return GetConfigValue(key)
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug = 0
	if debug := lookup("VOCABTRIM_DEBUG"); debug != "" {
		if d, err := strconv.Atoi(debug); err == nil {
			Debug = d
		} else if b, err := strconv.ParseBool(debug); err == nil {
			if b {
				Debug = 1
			}
		} else {
			Debug = 1
		}
	}

	Embeddings = DefaultEmbeddings
	if names := lookup("VOCABTRIM_EMBEDDINGS"); names != "" {
		Embeddings = nil
		for _, name := range strings.Split(names, ",") {
			if name = strings.TrimSpace(name); name != "" {
				Embeddings = append(Embeddings, name)
			}
		}
	}

	NumWorkers = 4
	if onw := lookup("VOCABTRIM_NUM_WORKERS"); onw != "" {
		val, err := strconv.Atoi(onw)
		if err != nil || val <= 0 {
			slog.Error("invalid setting must be greater than zero", "VOCABTRIM_NUM_WORKERS", onw, "error", err)
		} else {
			NumWorkers = val
		}
	}

	PaddingFactor = 8
	if pf := lookup("VOCABTRIM_PADDING_FACTOR"); pf != "" {
		val, err := strconv.Atoi(pf)
		if err != nil || val < 0 {
			slog.Error("invalid setting, ignoring", "VOCABTRIM_PADDING_FACTOR", pf, "error", err)
		} else {
			PaddingFactor = val
		}
	}

	Relaxed = false
	if relaxed := lookup("VOCABTRIM_RELAXED"); relaxed != "" {
		r, err := strconv.ParseBool(relaxed)
		if err != nil {
			slog.Error("invalid setting, ignoring", "VOCABTRIM_RELAXED", relaxed, "error", err)
		} else {
			Relaxed = r
		}
	}

	TmpDir = lookup("VOCABTRIM_TMPDIR")
}
