package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/modbase/core/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate module declarations without touching the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := modsDir
		if dir == "" {
			dir = "modules"
		}

		catalog := schema.NewCatalog()

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read modules dir %s: %w", dir, err)
		}

		var modules, entities, items int
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			descPath := filepath.Join(dir, entry.Name(), "module.yaml")
			if _, err := os.Stat(descPath); err != nil {
				continue
			}

			mod, err := schema.ParseModuleFile(descPath)
			if err != nil {
				return err
			}
			modules++

			for _, file := range mod.Entities {
				parsed, err := schema.ParseEntitiesFile(filepath.Join(dir, entry.Name(), file), catalog)
				if err != nil {
					return err
				}
				entities += len(parsed)
			}

			for _, file := range mod.Data {
				df, err := schema.ParseDataFile(filepath.Join(dir, entry.Name(), file))
				if err != nil {
					return err
				}
				items += len(df.MenuItems)
			}
		}

		fmt.Printf("Valid. %d modules, %d entities, %d menu items.\n", modules, entities, items)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
