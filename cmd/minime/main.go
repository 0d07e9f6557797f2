// Command minime drives a rigged avatar from webcam pose landmarks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/minime/internal/config"
	"github.com/ayusman/minime/internal/logger"
	"github.com/ayusman/minime/internal/store"
)

var (
	// The root command; subcommands register themselves in init.
	rootCmd = &cobra.Command{
		Use:           "minime",
		Short:         "Drive a rigged avatar from webcam pose landmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath string
	debugMode  bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "minime.yaml", "Path to the YAML configuration file.")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Log at debug level with the console encoder.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger.
func setup() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if debugMode {
		cfg.Debug = true
	}
	if err := logger.Init(cfg.Debug); err != nil {
		return cfg, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*store.Store, error) {
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
