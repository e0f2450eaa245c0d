package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ragctl/ragcore/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user/global configuration file.

User configuration contains machine-specific settings that apply to every
project on this machine: embedding settings, performance tuning, default log
level.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/ragctl/config.yaml)
  3. Project config (.ragctl.yaml)
  4. Environment variables (RAGCTL_*)`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user/global configuration file with hardcoded defaults.

If a user configuration already exists, --force backs it up, merges in any
newly introduced fields, and rewrites it, preserving existing settings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite or upgrade an existing configuration")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration from the given source.

--source merged (the default) shows defaults + user config + project config
+ environment variables, exactly as the rest of the CLI sees it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			_, _ = fmt.Fprintf(out, "User configuration already exists at %s\n", configPath)
			_, _ = fmt.Fprintln(out, "Use --force to upgrade it with any new default fields.")
			return nil
		}
		return runConfigUpgrade(cmd, configPath)
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := config.NewConfig().WriteYAML(configPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Created user configuration at %s\n", configPath)
	return nil
}

func runConfigUpgrade(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("backup existing config: %w", err)
	}

	existingCfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("load existing config: %w", err)
	}
	if existingCfg == nil {
		return fmt.Errorf("config file disappeared during upgrade")
	}

	newFields := existingCfg.MergeNewDefaults()
	if err := existingCfg.WriteYAML(configPath); err != nil {
		return fmt.Errorf("write upgraded config: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Upgraded configuration at %s (backup: %s)\n", configPath, backupPath)
	if len(newFields) == 0 {
		_, _ = fmt.Fprintln(out, "Already up to date; no new fields added.")
		return nil
	}
	_, _ = fmt.Fprintln(out, "New fields added with defaults:")
	for _, field := range newFields {
		_, _ = fmt.Fprintf(out, "  - %s\n", field)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var cfg *config.Config
	var sourceDesc string

	switch source {
	case "merged":
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get current directory: %w", err)
		}
		root, err := config.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}
		cfg, err = config.Load(root)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		sourceDesc = "merged (defaults + user + project + env)"

	case "user":
		configPath := config.GetUserConfigPath()
		if !config.UserConfigExists() {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No user configuration file found (expected at %s)\n", configPath)
			return nil
		}
		cfg = config.NewConfig()
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("read user config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse user config: %w", err)
		}
		sourceDesc = fmt.Sprintf("user (%s)", configPath)

	case "defaults":
		cfg = config.NewConfig()
		sourceDesc = "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, defaults)", source)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	_, _ = fmt.Fprintf(out, "# source: %s\n", sourceDesc)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
