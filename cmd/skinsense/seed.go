package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/skinsense/ai/tools"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import catalog products and routines from a JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := cmd.Flags().GetString("file")
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "failed to open catalog file")
		}
		defer f.Close()

		p, err := loadProfile()
		if err != nil {
			return err
		}
		ctx := context.Background()
		s, err := openStore(ctx, p)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := tools.ImportCatalog(ctx, s, f)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d products and %d routines (%d skipped)\n", stats.Products, stats.Routines, stats.Skipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "catalog.json", "catalog file with products and routines arrays")
}
