package main

import (
	"github.com/spf13/cobra"

	"github.com/d-sanghavi/library-management/config"
)

const flagConfig = "config"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lending",
		Short: "Library lending service",
		Long: `Lending runs the library's borrowing, renewal, return and reservation service.
Configuration is read from a TOML file; without one the service runs in memory.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP(flagConfig, "c", "", "Path to the TOML configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}
