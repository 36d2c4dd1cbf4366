package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/csvsource/internal/config"
	"github.com/zjrosen/csvsource/internal/flags"
	"github.com/zjrosen/csvsource/internal/paths"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the csvsource configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Long: `Write a commented default configuration file to path
(default: .csvsource/config.yaml). A directory gets .csvsource/config.yaml
inside it. An existing file is kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := paths.ResolveConfigFile("")
		if len(args) == 1 {
			path = paths.ResolveConfigFile(args[0])
		}
		if err := initConfigFile(path, configForce); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.Render(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configFlagCmd = &cobra.Command{
	Use:   "flag <name> <on|off>",
	Short: "Turn a feature flag on or off in the configuration file",
	Long: fmt.Sprintf(`Turn a feature flag on or off in the configuration file in use
(default: .csvsource/config.yaml). Comments in the file are kept.

Known flags: %s`, strings.Join(flags.Known(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.ConfigFileUsed()
		if path == "" {
			path = paths.ResolveConfigFile("")
		}
		if err := setFlag(path, args[0], args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s=%s in %s\n", args[0], args[1], path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configFlagCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfigFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	return config.WriteDefaultConfig(path)
}

func setFlag(path, name, state string) error {
	if !flags.IsKnown(name) {
		return fmt.Errorf("unknown flag %q (known: %s)", name, strings.Join(flags.Known(), ", "))
	}

	var enabled bool
	switch strings.ToLower(state) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		b, err := strconv.ParseBool(state)
		if err != nil {
			return fmt.Errorf("flag state must be on or off, got %q", state)
		}
		enabled = b
	}
	return config.SetFlag(path, name, enabled)
}
