package main

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	"github.com/YuminosukeSato/leadscore/pkg/log"
	"github.com/YuminosukeSato/leadscore/tracking"
)

func newTrainCmd(a *app) *cobra.Command {
	var dataPath, out string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the training pipeline once and report held-out metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			ds, err := dataset.LoadCSV(dataPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			run := a.startRun(ctx, "training", a.cfg.Training)
			model, m, err := pipeline.Train(ds, a.cfg.Training)
			if err != nil {
				endRun(ctx, run, tracking.StatusFailed)
				return err
			}
			logRunMetrics(ctx, run, m.Map())
			endRun(ctx, run, tracking.StatusFinished)

			if out != "" {
				if err := model.Save(out); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", defaultDataPath, "Training CSV")
	cmd.Flags().StringVar(&out, "out", "", "Also save the model trained on the training partition")
	return cmd
}

// startRun opens a tracking run for a training job. Tracking problems are
// logged and yield a nil run; they never stop training.
func (a *app) startRun(ctx context.Context, name string, cfg config.Training) tracking.Run {
	logger := log.GetLoggerWithName("cli")
	tracker, err := tracking.New(ctx, a.cfg.Tracking)
	if err != nil {
		logger.Warn("Tracking disabled", err)
		return nil
	}
	run, err := tracker.StartRun(ctx, tracking.RunOptions{Name: name})
	if err != nil {
		logger.Warn("Tracking disabled", err)
		return nil
	}

	params := cfg.Model.Params.Strings()
	params["test_size"] = strconv.FormatFloat(cfg.TestSize, 'g', -1, 64)
	params["random_seed"] = strconv.FormatInt(cfg.RandomSeed, 10)
	params["smote"] = strconv.FormatBool(cfg.SMOTE)
	if err := run.LogParams(ctx, params); err != nil {
		logger.Warn("Params not tracked", err)
	}
	return run
}

func logRunMetrics(ctx context.Context, run tracking.Run, metrics map[string]float64) {
	if run == nil {
		return
	}
	if err := run.LogMetrics(ctx, metrics, 0); err != nil {
		log.GetLoggerWithName("cli").Warn("Metrics not tracked", err)
	}
}

func endRun(ctx context.Context, run tracking.Run, status tracking.Status) {
	if run == nil {
		return
	}
	if err := run.End(ctx, status); err != nil {
		log.GetLoggerWithName("cli").Warn("Run not closed", err)
	}
}
