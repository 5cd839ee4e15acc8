package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/leadscore/dataset"
	"github.com/YuminosukeSato/leadscore/pkg/log"
)

func newGenerateCmd(a *app) *cobra.Command {
	opts := dataset.DefaultClassificationOptions()
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic imbalanced sales dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := log.SetupLogger(log.Options{Level: a.logLevel, Output: cmd.ErrOrStderr()}); err != nil {
				return err
			}
			ds, err := dataset.MakeClassification(opts)
			if err != nil {
				return err
			}
			if err := dataset.SaveCSV(out, ds); err != nil {
				return err
			}
			counts := ds.ClassCounts()
			log.GetLoggerWithName("cli").Info("Dataset generated",
				log.PathKey, out,
				log.SamplesKey, ds.Len(),
				log.FeaturesKey, ds.NumCols(),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s (class 0: %d, class 1: %d)\n",
				ds.Len(), out, counts[0], counts[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", defaultDataPath, "Output CSV path")
	cmd.Flags().IntVar(&opts.Samples, "samples", opts.Samples, "Number of rows")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "Random seed")
	cmd.Flags().Float64Var(&opts.FlipY, "flip-y", opts.FlipY, "Fraction of labels flipped at random")
	return cmd
}
