package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"synthfilter/internal/format"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeThreads()
	c.normalizeInputFormats()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	c.ScriptPath = strings.TrimSpace(c.ScriptPath)
	if c.ScriptPath, err = expandPath(c.ScriptPath); err != nil {
		return fmt.Errorf("script_path: %w", err)
	}
	c.RemoteSocket = strings.TrimSpace(c.RemoteSocket)
	if c.RemoteSocket == "" {
		c.RemoteSocket = defaultRemoteSocket()
	}
	if c.RemoteSocket, err = expandPath(c.RemoteSocket); err != nil {
		return fmt.Errorf("remote_socket: %w", err)
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine = strings.TrimSpace(c.Engine)
	if c.Engine == "" {
		c.Engine = defaultEngine
	}
}

func (c *Config) normalizeThreads() {
	if c.OutputThreads < 1 {
		c.OutputThreads = defaultOutputThreads
	}
	c.OutputThreads = min(c.OutputThreads, maxOutputThreads)
	if c.ExtraSourceBuffer < 0 {
		c.ExtraSourceBuffer = defaultExtraSourceBuffer
	}
	c.ExtraSourceBuffer = min(c.ExtraSourceBuffer, maxExtraSourceBuffer)
}

// normalizeInputFormats fills in formats missing from the document and
// canonicalizes the case of the names that are present. Names spelled in
// canonical case are applied first, so a differently cased duplicate wins
// and the outcome never depends on map order.
func (c *Config) normalizeInputFormats() {
	configured := c.InputFormats
	c.InputFormats = defaultInputFormats()
	names := slices.Sorted(maps.Keys(configured))
	slices.SortStableFunc(names, func(a, b string) int {
		return cmpBool(canonicalFormatName(a) != a, canonicalFormatName(b) != b)
	})
	for _, name := range names {
		enabled := configured[name]
		canonical := canonicalFormatName(name)
		if canonical == "" {
			// Unknown names are reported by Validate.
			c.InputFormats[strings.TrimSpace(name)] = enabled
			continue
		}
		c.InputFormats[canonical] = enabled
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func canonicalFormatName(name string) string {
	name = strings.TrimSpace(name)
	for _, known := range format.Names() {
		if strings.EqualFold(known, name) {
			return known
		}
	}
	return ""
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
