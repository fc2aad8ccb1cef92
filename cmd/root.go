package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filament-cli/internal/config"
	"github.com/xkilldash9x/filament-cli/internal/observability"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "filament",
	Short: "Filament grows Lichtenberg-style discharge figures.",
	Long: `Filament is a procedural growth engine for Lichtenberg figures: branching
discharge patterns grown vertex by vertex under an inverse-square repulsion
field with exponentially cooling branches. Runs are deterministic for a given
seed and configuration, and can be exported as DOT, JSON, or GraphML.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			// A fallback logger so the error itself is still visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "filament"})
			return err
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting filament", zap.String("version", Version))
		return nil
	},
}

// ExecuteContext runs the root command under a signal-aware context and exits
// non-zero on failure. Cancelling the context stops a growth loop between
// steps; the partial figure is still exported.
func ExecuteContext(ctx context.Context) {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./filament.yaml or ~/.filament/filament.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newGrowCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newRunsCmd(NewStoreProvider()))
}

// initializeConfig reads the config file and environment variables.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".filament"))
		}
		viper.SetConfigName("filament")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FILAMENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults, env vars, and flags carry the run.
	}
	return nil
}

// loadConfig unmarshals and validates the effective configuration. Called
// again by subcommands after they bind their flags, so flag overrides land
// with the right precedence.
func loadConfig() (*config.Config, error) {
	return config.NewConfigFromViper(viper.GetViper())
}
