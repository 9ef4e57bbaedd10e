package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/artpar/modbase/config"
	"github.com/spf13/cobra"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only introspection API",
	Long: `Serve installs all discovered modules and exposes the registries over
HTTP: entity schemas, the menu tree, health, and Prometheus metrics.

With --watch, changes to module files re-run update automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := app.Install(ctx, nil); err != nil {
			// Already-installed modules are expected on restart.
			app.Logger.Warn().Err(err).Msg("install pass finished with errors")
		}
		if err := app.Update(ctx, nil); err != nil {
			return err
		}

		if serveWatch {
			watcher, err := config.NewWatcher(app.Config.Modules.Dir, app.Logger, func() {
				if err := app.Update(context.Background(), nil); err != nil {
					app.Logger.Error().Err(err).Msg("watch update failed")
				}
			})
			if err != nil {
				return err
			}
			watcher.Start()
			defer watcher.Stop()
		}

		return app.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-run update when module files change")
	rootCmd.AddCommand(serveCmd)
}
