package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Koalla18/TakeSmart/internal/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "takesmart",
		Short: "TakeSmart catalog service",
		Long:  "Serve the TakeSmart product catalog with a shared cache and lexical/vector search",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(
		serveCmd(),
		cacheCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file (if any), applies TAKESMART_* overrides
// and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
