package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/cqlconn/internal/config"
	"github.com/zjrosen/cqlconn/internal/log"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	ephemeral bool
	cfg       config.Config
	cfgUsed   string
	logClose  func()
)

var rootCmd = &cobra.Command{
	Use:   "cqlconn",
	Short: "Manage clinical data endpoint connections",
	Long: `Manage named connections to clinical data endpoints, the patient and
resource contexts attached to each, and the currently selected connection.

All output is JSON so results can be piped through jq.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .cqlconn/config.yaml, then ~/.config/cqlconn/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write a debug log (also enabled by CQLCONN_DEBUG)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false,
		"keep state in memory only for this invocation")
	rootCmd.PersistentFlags().String("backend", "",
		"store backend override: file, sqlite, redis, or memory")
	rootCmd.PersistentFlags().String("store-path", "",
		"state file override for the file and sqlite backends")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	v := config.NewViper()
	bindOverride(v, cmd, "backend", "store.backend")
	bindOverride(v, cmd, "store-path", "store.path")

	loaded, used, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if ephemeral {
		loaded.Store.Backend = config.BackendMemory
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg, cfgUsed = loaded, used

	return initLogging()
}

// bindOverride lets an explicitly set command line flag win over the config file.
func bindOverride(v *viper.Viper, cmd *cobra.Command, flag, key string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

func initLogging() error {
	debug := os.Getenv("CQLCONN_DEBUG") != "" || debugFlag
	if !debug || logClose != nil {
		return nil
	}

	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	if cfg.Log.Level != "" {
		level, _ := log.ParseLevel(cfg.Log.Level)
		log.SetMinLevel(level)
	}
	logClose = cleanup

	log.Info(log.CatCLI, "cqlconn starting", "version", version, "config", cfgUsed,
		"backend", cfg.Store.Backend)
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		if logClose != nil {
			logClose()
			logClose = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
