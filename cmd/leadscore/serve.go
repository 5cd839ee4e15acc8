package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/leadscore/serving"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, modelPath, version string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Serving.Addr
			}
			if modelPath == "" {
				modelPath = a.cfg.Serving.ModelPath
			}
			if version == "" {
				version = a.cfg.Serving.ModelVersion
			}

			srv, err := serving.Load(modelPath, serving.Options{Addr: addr, ModelVersion: version})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to serving.addr)")
	cmd.Flags().StringVar(&modelPath, "model", "", "Model artifact (defaults to serving.model_path)")
	cmd.Flags().StringVar(&version, "model-version", "", "Reported model version (defaults to serving.model_version)")
	return cmd
}
