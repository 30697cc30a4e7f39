package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

var (
	searchCriteriaPath string
	searchProfilePath  string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search and print the scenario payload as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var criteria domain.SearchCriteria
		if err := readJSONFile(searchCriteriaPath, &criteria); err != nil {
			return err
		}
		var profile domain.ClientProfile
		if searchProfilePath != "" {
			if err := readJSONFile(searchProfilePath, &profile); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		payload, err := env.Router.Route(ctx, criteria, profile)
		if err != nil {
			return err
		}

		zap.L().Info("search complete",
			zap.String("scenario", string(payload.Scenario)),
			zap.Int("total", payload.Total),
		)
		return printJSON(cmd.OutOrStdout(), payload)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCriteriaPath, "criteria", "", "path to search criteria JSON (required)")
	searchCmd.Flags().StringVar(&searchProfilePath, "profile", "", "path to client profile JSON")
	_ = searchCmd.MarkFlagRequired("criteria")
	rootCmd.AddCommand(searchCmd)
}
