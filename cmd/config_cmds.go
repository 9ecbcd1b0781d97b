package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zjrosen/cqlconn/internal/config"
	"github.com/zjrosen/cqlconn/internal/flags"
)

var initForce bool

// configPath is the file config commands write to: --config, then the file
// that was loaded, then the local default.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if cfgUsed != "" {
		return cfgUsed
	}
	return config.LocalConfigPath
}

var configInitCmd = &cobra.Command{
	Use:   "config:init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := cfgFile
		if path == "" {
			path = config.LocalConfigPath
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

var configBackendCmd = &cobra.Command{
	Use:   "config:backend <file|sqlite|redis|memory>",
	Short: "Set the store backend in the config file",
	Long: `Set the store backend in the config file, keeping comments and other settings.

Examples:
  cqlconn config:backend sqlite --store-path ~/.config/cqlconn/connections.db
  cqlconn config:backend redis --redis-url redis://localhost:6379/0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cfg.Store
		store.Backend = args[0]
		if url, _ := cmd.Flags().GetString("redis-url"); url != "" {
			store.RedisURL = url
		}
		if err := config.ValidateStore(store); err != nil {
			return err
		}
		path := configPath()
		if err := config.SaveStore(path, store); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

var configFlagCmd = &cobra.Command{
	Use:   "config:flag <name> <true|false>",
	Short: "Enable or disable a feature flag in the config file",
	Long: `Enable or disable a feature flag in the config file.

Flags:
  async-flush  return before changes are written (default true)
  strict-load  refuse to start when stored state cannot be read (default false)`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, known := flags.Defaults()[args[0]]; !known {
			return fmt.Errorf("unknown flag %q", args[0])
		}
		enabled, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("flag value must be true or false, got %q", args[1])
		}
		path := configPath()
		if err := config.SaveFlag(path, args[0], enabled); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	configBackendCmd.Flags().String("redis-url", "", "Redis URL for the redis backend")
	rootCmd.AddCommand(configInitCmd, configBackendCmd, configFlagCmd)
}
