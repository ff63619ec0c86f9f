package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config represents the TOML configuration structure
type Config struct {
	Build struct {
		Workers       int  `toml:"workers"`
		PaddingFactor *int `toml:"padding_factor"`
		Relaxed       bool `toml:"relaxed"`
	} `toml:"build"`

	Remap struct {
		Embeddings []string `toml:"embeddings"`
	} `toml:"remap"`

	TmpDir string `toml:"tmp_dir"`

	Logging struct {
		Debug int `toml:"debug"`
	} `toml:"logging"`
}

var (
	configOnce sync.Once
	config     *Config
	configPath string
)

// GetConfigPaths returns the list of possible config file paths for the current OS
func GetConfigPaths() []string {
	if p := clean("VOCABTRIM_CONFIG"); p != "" {
		return []string{p}
	}

	var paths []string

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "vocabtrim", "config.toml"))
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			paths = append(paths, filepath.Join(xdgConfig, "vocabtrim", "config.toml"))
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "vocabtrim", "config.toml"),
			filepath.Join(home, ".vocabtrim", "config.toml"),
		)
	}

	return paths
}

// ConfigPath returns the configuration file in use, if any.
func ConfigPath() string {
	GetConfigValue("")
	return configPath
}

// loadConfig loads the first available configuration file
func loadConfig() (*Config, string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			var cfg Config
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, "", fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			return &cfg, path, nil
		}
	}
	return nil, "", nil
}

// resetConfigFile forgets the cached configuration file so the next lookup
// reads it again.
func resetConfigFile() {
	configOnce = sync.Once{}
	config, configPath = nil, ""
}

// GetConfigValue returns the value for a given environment variable key from the config file
func GetConfigValue(key string) string {
	configOnce.Do(func() {
		var err error
		config, configPath, err = loadConfig()
		if err != nil {
			slog.Warn("failed to load config file", "error", err)
		} else if config != nil {
			slog.Debug("loaded config file", "path", configPath)
		}
	})

	if config == nil {
		return ""
	}

	switch key {
	case "VOCABTRIM_DEBUG":
		if config.Logging.Debug > 0 {
			return fmt.Sprintf("%d", config.Logging.Debug)
		}
	case "VOCABTRIM_EMBEDDINGS":
		return strings.Join(config.Remap.Embeddings, ",")
	case "VOCABTRIM_NUM_WORKERS":
		if config.Build.Workers > 0 {
			return fmt.Sprintf("%d", config.Build.Workers)
		}
	case "VOCABTRIM_PADDING_FACTOR":
		if config.Build.PaddingFactor != nil {
			return fmt.Sprintf("%d", *config.Build.PaddingFactor)
		}
	case "VOCABTRIM_RELAXED":
		if config.Build.Relaxed {
			return "true"
		}
	case "VOCABTRIM_TMPDIR":
		return config.TmpDir
	}

	return ""
}

// GenerateExampleConfig returns a commented example TOML configuration
func GenerateExampleConfig() string {
	return `# vocabtrim configuration file
# Environment variables (VOCABTRIM_*) take precedence over these values.

# Directory for temporary files written before a checkpoint is published
tmp_dir = ""

[build]
# Corpus files scanned in parallel (default: 4)
workers = 4
# Dictionary size plus language tags and mask is padded to a multiple of this (default: 8)
padding_factor = 8
# Skip lines that produce no symbols instead of failing (default: false)
relaxed = false

[remap]
# Embedding tensors remapped onto the new dictionary
embeddings = ["encoder.embed_tokens.weight", "decoder.embed_tokens.weight"]

[logging]
# 1 enables debug logs, 2 enables trace logs (default: 0)
debug = 0
`
}
