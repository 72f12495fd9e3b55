package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"synthfilter/internal/config"
	"synthfilter/internal/format"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetScriptCommand(ctx))
	configCmd.AddCommand(newConfigFormatCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit script_path to point at your filter script before running synthfilter.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			switch {
			case cfg.Backend == config.BackendRegistry:
				fmt.Fprintln(out, "Settings were read from the registry database")
			case !exists:
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, cfg)
			}
			var disabled []string
			for _, name := range format.Names() {
				if !cfg.IsInputFormatEnabled(name) {
					disabled = append(disabled, name)
				}
			}
			disabledText := "none"
			if len(disabled) > 0 {
				disabledText = strings.Join(disabled, ", ")
			}
			script := cfg.ScriptPath
			if script == "" {
				script = "(not set)"
			}
			rows := [][]string{
				{"Location", cfg.Location()},
				{"Backend", string(cfg.Backend)},
				{"Script", script},
				{"Engine", cfg.Engine},
				{"Output threads", strconv.Itoa(cfg.OutputThreads)},
				{"Extra source buffer", strconv.Itoa(cfg.ExtraSourceBuffer)},
				{"Remote control", yesNo(cfg.RemoteControl)},
				{"Remote socket", cfg.RemoteSocket},
				{"Disabled formats", disabledText},
				{"Log level", cfg.Logging.Level},
				{"Log format", cfg.Logging.Format},
			}
			if cfg.Logging.File != "" {
				rows = append(rows, []string{"Log file", cfg.Logging.File})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
	jsonFlag(cmd, &asJSON, "")
	return cmd
}

func newConfigSetScriptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-script <path>",
		Short: "Store the script path in the active settings backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.SetScriptPath(args[0]); err != nil {
				return err
			}
			if err := cfg.Save(cmd.Context()); err != nil {
				return fmt.Errorf("save settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Script set to %s (%s)\n", cfg.ScriptPath, cfg.Location())
			return nil
		},
	}
}

func newConfigFormatCommand(ctx *commandContext) *cobra.Command {
	var disable bool
	cmd := &cobra.Command{
		Use:   "format <name>",
		Short: "Enable or disable an input format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := cfg.SetInputFormatEnabled(name, !disable); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(cmd.Context()); err != nil {
				return fmt.Errorf("save settings: %w", err)
			}
			state := "enabled"
			if disable {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Format %s %s (%s)\n", name, state, cfg.Location())
			return nil
		},
	}
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the format instead of enabling it")
	return cmd
}
