package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/leadscore/config"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultDataPath   = "data/raw/sample_sales.csv"
)

// app holds the state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}

	root := &cobra.Command{
		Use:   "leadscore",
		Short: "Sales lead conversion classifier",
		Long: `Train, tune and serve a gradient boosted classifier that predicts
whether a sales lead converts. Class imbalance is handled with SMOTE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")

	root.AddCommand(
		newGenerateCmd(a),
		newTrainCmd(a),
		newTuneCmd(a),
		newTrainFinalCmd(a),
		newServeCmd(a),
	)
	return root
}

// loadConfig reads the configuration file and installs the logger it
// describes. A missing file is only tolerated for the default path.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		var cfgErr *lsErrors.ConfigError
		_, statErr := os.Stat(a.configPath)
		explicit := cmd.Flags().Changed("config")
		if explicit || !os.IsNotExist(statErr) || !lsErrors.As(err, &cfgErr) {
			return err
		}
		cfg = config.Default()
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	if err := log.SetupLogger(log.Options{Level: level, File: cfg.Log.File, Output: cmd.ErrOrStderr()}); err != nil {
		return err
	}
	log.GetLoggerWithName("cli").Debug("Configuration loaded", log.ConfigPathKey, a.configPath)
	return nil
}
