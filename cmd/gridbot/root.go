package main

import (
	"errors"
	"os"

	"grid_go/internal/infra"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:          "gridbot",
	Short:        "Long-only range grid bot for Alpaca crypto",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := infra.LoadEnvFile(envFile); err != nil {
			return err
		}
		configPath = resolveConfigPath(configPath, cmd.Flags().Changed("config"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "YAML config path (empty for environment only)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
}

// resolveConfigPath falls back to environment-only configuration when the
// default file does not exist. An explicit --config is always honoured.
func resolveConfigPath(path string, explicit bool) string {
	if explicit || path == "" {
		return path
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}
