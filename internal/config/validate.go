package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateInputFormats(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	if strings.TrimSpace(c.Engine) == "" {
		return errors.New("engine must be set")
	}
	if c.OutputThreads < 1 || c.OutputThreads > maxOutputThreads {
		return fmt.Errorf("output_threads must be between 1 and %d", maxOutputThreads)
	}
	if c.ExtraSourceBuffer < 0 || c.ExtraSourceBuffer > maxExtraSourceBuffer {
		return fmt.Errorf("extra_source_buffer must be between 0 and %d", maxExtraSourceBuffer)
	}
	return nil
}

func (c *Config) validateInputFormats() error {
	var unknown []string
	enabled := 0
	for name, on := range c.InputFormats {
		if canonicalFormatName(name) == "" {
			unknown = append(unknown, name)
			continue
		}
		if on {
			enabled++
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("input_formats: unknown format(s) %s", strings.Join(unknown, ", "))
	}
	if enabled == 0 {
		return errors.New("input_formats: at least one format must be enabled")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.RemoteControl && strings.TrimSpace(c.RemoteSocket) == "" {
		return errors.New("remote_socket must be set when remote_control is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
