package config

import (
	"os"
	"path/filepath"
	"strings"

	"synthfilter/internal/format"
)

const (
	defaultEngine            = "starlark"
	defaultOutputThreads     = 1
	defaultExtraSourceBuffer = 0
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultConfigPath        = "~/.config/synthfilter/config.toml"
	sideBySideConfigName     = "synthfilter.toml"
	maxOutputThreads         = 256
	maxExtraSourceBuffer     = 64
)

// Default returns a Config populated with repository defaults. Every known
// input format starts enabled.
func Default() Config {
	return Config{
		Engine:            defaultEngine,
		OutputThreads:     defaultOutputThreads,
		ExtraSourceBuffer: defaultExtraSourceBuffer,
		InputFormats:      defaultInputFormats(),
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Backend: BackendNone,
	}
}

func defaultInputFormats() map[string]bool {
	names := format.Names()
	formats := make(map[string]bool, len(names))
	for _, name := range names {
		formats[name] = true
	}
	return formats
}

func defaultRuntimeDir() string {
	if base, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "synthfilter")
	}
	return filepath.Join(os.TempDir(), "synthfilter-"+strings.TrimSpace(os.Getenv("USER")))
}

func defaultRemoteSocket() string {
	return filepath.Join(defaultRuntimeDir(), "synthfilter.sock")
}

// DefaultRegistryPath returns the settings database used when no config file
// exists. SYNTHFILTER_REGISTRY overrides it.
func DefaultRegistryPath() string {
	if value, ok := os.LookupEnv("SYNTHFILTER_REGISTRY"); ok && strings.TrimSpace(value) != "" {
		if expanded, err := expandPath(strings.TrimSpace(value)); err == nil {
			return expanded
		}
	}
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "synthfilter", "settings.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".local", "share", "synthfilter", "settings.db")
	}
	return filepath.Join(home, ".local", "share", "synthfilter", "settings.db")
}
