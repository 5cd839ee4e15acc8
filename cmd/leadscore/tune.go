package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/leadscore/config"
	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pipeline"
	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
	"github.com/YuminosukeSato/leadscore/pkg/log"
	"github.com/YuminosukeSato/leadscore/tracking"
	"github.com/YuminosukeSato/leadscore/tuning"
)

type tuneFlags struct {
	data       string
	trials     int
	objective  string
	parallel   int
	sampler    string
	plot       string
	result     string
	bestConfig string
	progress   bool
}

func newTuneCmd(a *app) *cobra.Command {
	var f tuneFlags

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Search hyperparameters maximising a held-out metric",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			ds, err := dataset.LoadCSV(f.data)
			if err != nil {
				return err
			}
			sampler, err := newSampler(f.sampler, a.cfg.Training.RandomSeed)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var tracker tracking.Tracker = tracking.NopTracker{}
			if t, err := tracking.New(ctx, a.cfg.Tracking); err != nil {
				log.GetLoggerWithName("cli").Warn("Tracking disabled", err)
			} else {
				tracker = t
			}
			var progress io.Writer
			if f.progress {
				progress = cmd.ErrOrStderr()
			}

			res, err := tuning.Search(ctx, ds, a.cfg, tuning.Options{
				Trials:      f.trials,
				Objective:   f.objective,
				Parallelism: f.parallel,
				Sampler:     sampler,
				Tracker:     tracker,
				Progress:    progress,
				StudyName:   a.cfg.Tracking.ExperimentName,
			})
			if err != nil {
				return err
			}

			if f.result != "" {
				if err := tuning.SaveResult(res, f.result); err != nil {
					return err
				}
			}
			if f.plot != "" && res.Best != nil {
				if err := tuning.PlotHistory(res, f.plot); err != nil {
					return err
				}
			}
			return report(cmd.OutOrStdout(), res, f.bestConfig)
		},
	}
	cmd.Flags().StringVar(&f.data, "data", defaultDataPath, "Training CSV")
	cmd.Flags().IntVar(&f.trials, "trials", 50, "Number of trials")
	cmd.Flags().StringVar(&f.objective, "objective", pipeline.MetricF1Class1, "Metric to maximise")
	cmd.Flags().IntVar(&f.parallel, "parallel", 1, "Trials run concurrently")
	cmd.Flags().StringVar(&f.sampler, "sampler", "tpe", "Sampler (tpe, random)")
	cmd.Flags().StringVar(&f.plot, "plot", "", "Write the optimization history image to this path")
	cmd.Flags().StringVar(&f.result, "result", "", "Write all trials as YAML to this path")
	cmd.Flags().StringVar(&f.bestConfig, "best-config", "", "Write the configuration of the best trial to this path")
	cmd.Flags().BoolVar(&f.progress, "progress", true, "Show a progress bar on stderr")
	return cmd
}

func newSampler(name string, seed int64) (tuning.Sampler, error) {
	switch name {
	case "tpe":
		return tuning.NewTPESampler(seed), nil
	case "random":
		return tuning.NewRandomSampler(seed), nil
	default:
		return nil, lsErrors.NewConfigError("sampler", "must be tpe or random", name)
	}
}

func report(w io.Writer, res *tuning.Result, bestConfigPath string) error {
	if res.Best == nil {
		return lsErrors.Wrapf(lsErrors.ErrNoSuccessfulTrial, "%d attempts", res.Attempts)
	}
	fmt.Fprintf(w, "best trial: %d\n", res.Best.Number)
	fmt.Fprintf(w, "best %s: %.4f\n", res.Objective, res.BestScore)
	fmt.Fprintln(w, "best params:")
	for _, p := range tuning.DefaultSpace() {
		if v, ok := res.Best.Params[p.Name]; ok {
			fmt.Fprintf(w, "  %s: %v\n", p.Name, v)
		}
	}
	fmt.Fprintf(w, "scores: mean %.4f, median %.4f, stddev %.4f over %d trials\n",
		res.Summary.Mean, res.Summary.Median, res.Summary.StdDev, res.Summary.Count)

	if bestConfigPath != "" {
		return config.Save(res.BestConfig, bestConfigPath)
	}
	return nil
}
