package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	"github.com/YuminosukeSato/leadscore/pkg/log"
	"github.com/YuminosukeSato/leadscore/tracking"
)

func newTrainFinalCmd(a *app) *cobra.Command {
	var dataPath, out string

	cmd := &cobra.Command{
		Use:   "train-final",
		Short: "Fit the classifier on all rows and save it for serving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			if out == "" {
				out = a.cfg.Serving.ModelPath
			}
			ds, err := dataset.LoadCSV(dataPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			run := a.startRun(ctx, "final-training", a.cfg.Training)
			model, err := pipeline.FitFinal(ds, a.cfg.Training)
			if err != nil {
				endRun(ctx, run, tracking.StatusFailed)
				return err
			}
			if err := model.Save(out); err != nil {
				endRun(ctx, run, tracking.StatusFailed)
				return err
			}
			if run != nil {
				if err := run.SetTag(ctx, "model_path", out); err != nil {
					log.GetLoggerWithName("cli").Warn("Tag not tracked", err)
				}
			}
			endRun(ctx, run, tracking.StatusFinished)

			log.GetLoggerWithName("cli").Info("Final model saved", log.PathKey, out, log.SamplesKey, ds.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "model saved to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", defaultDataPath, "Training CSV")
	cmd.Flags().StringVar(&out, "out", "", "Model output path (defaults to serving.model_path)")
	return cmd
}
