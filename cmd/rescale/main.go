package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/config"
	"github.com/landscape-rescale/internal/pkg/logger"
)

// app - общее состояние команд, заполняется в PersistentPreRunE
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "rescale",
		Short:         "Spatial aggregation of indicator observations to landscape units",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config.yaml (default $RESCALE_CONFIG or ./config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level from config")

	root.AddCommand(
		newRunCmd(a),
		newMigrateCmd(a),
		newGridCmd(a),
	)

	return root
}

func (a *app) init() error {
	path := a.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	log, err := logger.New(cfg.Log.Level, "rescale-cli")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}
