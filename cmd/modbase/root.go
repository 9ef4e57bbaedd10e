package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	dbPath  string
	modsDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modbase",
	Short: "Declarative module platform: entities, schema sync, and menus",
	Long: `Modbase loads declarative modules in dependency order, registers their
entities into a process-wide pool, synchronizes SQLite tables append-only,
and builds the menu/action tree from metadata files.

Quick start:
  modbase install          # Install all modules from the modules directory
  modbase update           # Re-run synchronization for installed modules
  modbase serve            # Serve the read-only introspection API

Tools:
  modbase validate         # Validate module declarations without a database
  modbase version          # Print version information`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "modbase.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modsDir, "modules", "", "modules directory (overrides config)")
}
