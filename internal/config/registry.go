package config

import (
	"context"
	"fmt"

	"synthfilter/internal/format"
	"synthfilter/internal/registry"
)

// Setting names used by the registry backend.
const (
	SettingScriptFile        = "ScriptFile"
	SettingInputFormatPrefix = "InputFormat_"
	SettingOutputThreads     = "OutputThreads"
	SettingRemoteControl     = "RemoteControl"
	SettingExtraSourceBuffer = "ExtraSourceBuffer"
	SettingLogFile           = "LogFile"
)

func (c *Config) loadRegistry(ctx context.Context, path string) (err error) {
	store, err := registry.Open(path)
	if err != nil {
		return fmt.Errorf("open settings registry: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close settings registry: %w", closeErr)
		}
	}()

	if c.ScriptPath, err = store.ReadString(ctx, SettingScriptFile, ""); err != nil {
		return fmt.Errorf("read %s: %w", SettingScriptFile, err)
	}
	for _, name := range format.Names() {
		enabled, err := store.ReadNumber(ctx, SettingInputFormatPrefix+name, 1)
		if err != nil {
			return fmt.Errorf("read %s%s: %w", SettingInputFormatPrefix, name, err)
		}
		c.InputFormats[name] = enabled != 0
	}
	threads, err := store.ReadNumber(ctx, SettingOutputThreads, defaultOutputThreads)
	if err != nil {
		return fmt.Errorf("read %s: %w", SettingOutputThreads, err)
	}
	c.OutputThreads = int(threads)
	remote, err := store.ReadNumber(ctx, SettingRemoteControl, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", SettingRemoteControl, err)
	}
	c.RemoteControl = remote != 0
	extra, err := store.ReadNumber(ctx, SettingExtraSourceBuffer, defaultExtraSourceBuffer)
	if err != nil {
		return fmt.Errorf("read %s: %w", SettingExtraSourceBuffer, err)
	}
	c.ExtraSourceBuffer = int(extra)
	if c.Logging.File, err = store.ReadString(ctx, SettingLogFile, ""); err != nil {
		return fmt.Errorf("read %s: %w", SettingLogFile, err)
	}
	return nil
}

func (c *Config) saveRegistry(ctx context.Context, path string) (err error) {
	store, err := registry.Open(path)
	if err != nil {
		return fmt.Errorf("open settings registry: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close settings registry: %w", closeErr)
		}
	}()

	if err := store.WriteString(ctx, SettingScriptFile, c.ScriptPath); err != nil {
		return fmt.Errorf("write %s: %w", SettingScriptFile, err)
	}
	for name, enabled := range c.InputFormats {
		var value int64
		if enabled {
			value = 1
		}
		if err := store.WriteNumber(ctx, SettingInputFormatPrefix+name, value); err != nil {
			return fmt.Errorf("write %s%s: %w", SettingInputFormatPrefix, name, err)
		}
	}
	return nil
}
