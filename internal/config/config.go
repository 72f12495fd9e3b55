package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend names where the loaded settings came from and where Save writes.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendRegistry Backend = "registry"
	BackendNone     Backend = "none"
)

// Logging contains configuration for log output.
type Logging struct {
	File   string `toml:"file"`
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates every setting the filter reads at startup.
//
// Only ScriptPath and InputFormats change at runtime; the remaining values
// are fixed for the life of the process.
type Config struct {
	ScriptPath        string          `toml:"script_path"`
	Engine            string          `toml:"engine"`
	OutputThreads     int             `toml:"output_threads"`
	RemoteControl     bool            `toml:"remote_control"`
	RemoteSocket      string          `toml:"remote_socket"`
	ExtraSourceBuffer int             `toml:"extra_source_buffer"`
	InputFormats      map[string]bool `toml:"input_formats"`
	Logging           Logging         `toml:"logging"`

	Backend Backend `toml:"-"`
	// location is the file path or registry database the settings were read from.
	location string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates and parses settings. The returned path is the config file (or
// registry database) that backs the result; exists reports whether a config
// file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	switch {
	case exists:
		if err := cfg.decodeFile(resolvedPath); err != nil {
			return nil, "", false, err
		}
		cfg.Backend = BackendFile
		cfg.location = resolvedPath
	case path == "":
		registryPath := DefaultRegistryPath()
		if info, statErr := os.Stat(registryPath); statErr == nil && !info.IsDir() {
			if err := cfg.loadRegistry(context.Background(), registryPath); err != nil {
				return nil, "", false, err
			}
			cfg.Backend = BackendRegistry
			cfg.location = registryPath
			resolvedPath = registryPath
		}
	}
	if cfg.Backend == BackendNone {
		cfg.location = resolvedPath
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func (c *Config) decodeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	text, err := decodeText(raw)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	// The document's table replaces the defaults; normalize merges them back
	// so differently cased names never share a map with the defaults.
	c.InputFormats = nil
	decoder := toml.NewDecoder(bytes.NewReader(text))
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// decodeText converts a UTF-8 or UTF-16 document with an optional byte
// order mark into plain UTF-8.
func decodeText(raw []byte) ([]byte, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return io.ReadAll(transform.NewReader(bytes.NewReader(raw), decoder))
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if exe, err := os.Executable(); err == nil {
		sidePath := filepath.Join(filepath.Dir(exe), sideBySideConfigName)
		if info, err := os.Stat(sidePath); err == nil && !info.IsDir() {
			return sidePath, true, nil
		}
	}
	return defaultPath, false, nil
}

// Location returns the file or registry database backing the settings.
func (c *Config) Location() string {
	return c.location
}

// Save persists the settings to their backend. A file backend rewrites the
// whole document; the registry backend stores the script path and input
// formats only. Settings that were never backed are written as a new config
// file at the default location.
func (c *Config) Save(ctx context.Context) error {
	switch c.Backend {
	case BackendRegistry:
		return c.saveRegistry(ctx, c.location)
	case BackendFile:
		return c.writeFile(c.location)
	default:
		target := c.location
		if target == "" {
			var err error
			if target, err = DefaultConfigPath(); err != nil {
				return err
			}
		}
		if err := c.writeFile(target); err != nil {
			return err
		}
		c.Backend = BackendFile
		c.location = target
		return nil
	}
}

func (c *Config) writeFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is empty")
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetScriptPath records a new script path. It takes effect on the next reload.
func (c *Config) SetScriptPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		c.ScriptPath = ""
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("script_path: %w", err)
	}
	c.ScriptPath = expanded
	return nil
}

// IsInputFormatEnabled reports whether the filter accepts the named format
// from upstream. Unknown names are disabled.
func (c *Config) IsInputFormatEnabled(name string) bool {
	return c.InputFormats[name]
}

// SetInputFormatEnabled toggles a known input format.
func (c *Config) SetInputFormatEnabled(name string, enabled bool) error {
	if _, ok := c.InputFormats[name]; !ok {
		return fmt.Errorf("input_formats: unknown format %q", name)
	}
	c.InputFormats[name] = enabled
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
