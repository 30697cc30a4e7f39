package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import <listings.json>",
	Short: "Load listings from a JSON file into the SQLite catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Catalog.Driver != "sqlite" {
			return eris.Errorf("import needs the sqlite catalog driver, have %q", cfg.Catalog.Driver)
		}

		st, err := openSQLite(ctx, cfg.Catalog.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := importListings(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "import listings")
		}

		zap.L().Info("import complete",
			zap.Int("listings", n),
			zap.String("db", cfg.Catalog.Path),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
