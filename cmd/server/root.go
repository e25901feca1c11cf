package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"apiresource/internal/config"
	"apiresource/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "apiserver",
		Short:        "Serve annotated entities as a REST API",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to a config file (default: ./apiresource.yaml when present)")

	cmd.AddCommand(
		newServeCmd(opts),
		newRoutesCmd(opts),
		newTokenCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds the process logger from it.
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)
	return cfg, log, nil
}
