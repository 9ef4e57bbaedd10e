package main

import (
	"context"
	"fmt"

	"github.com/artpar/modbase/bootstrap"
	"github.com/artpar/modbase/config"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install [module...]",
	Short: "Install modules: register entities, create tables, build menus",
	Long: `Install loads the named modules (or every discovered module) in
dependency order. Each module's entities are registered, its tables are
created, and its metadata files populate the menu tree. A module that is
already initialized must be loaded with update instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Install(context.Background(), args); err != nil {
			return err
		}

		fmt.Printf("Installed. %d entities registered, %d menu items.\n",
			app.Registry.Len(), app.UI.Len())
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [module...]",
	Short: "Re-run schema synchronization and metadata processing",
	Long: `Update re-loads modules that are already initialized. Synchronization
is append-only and idempotent: running update twice with identical
declarations leaves schema and menu tree unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Update(context.Background(), args); err != nil {
			return err
		}

		fmt.Printf("Updated. %d entities registered, %d menu items.\n",
			app.Registry.Len(), app.UI.Len())
		return nil
	},
}

// newApp loads config, applies flag overrides, and wires the application.
func newApp() (*bootstrap.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if modsDir != "" {
		cfg.Modules.Dir = modsDir
	}

	return bootstrap.New(cfg, bootstrap.Options{})
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
}
