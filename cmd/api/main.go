package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dream-search",
	Short: "Apartment search, Dream Score ranking and listing enrichment",
	Long:  "Filters the listing catalog, picks a presentation scenario, ranks by Dream Score and enriches listings from external sources.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
