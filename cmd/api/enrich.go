package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/enrichment"
)

var (
	enrichProfilePath string
	enrichSources     []string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <listing-id>...",
	Short: "Enrich listings and print the results as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources, err := enrichment.ParseSources(enrichSources)
		if err != nil {
			return err
		}
		var profile domain.ClientProfile
		if enrichProfilePath != "" {
			if err := readJSONFile(enrichProfilePath, &profile); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		listings := make([]domain.Listing, 0, len(args))
		for _, id := range args {
			l, err := env.Catalog.Get(ctx, id)
			if err != nil {
				return err
			}
			listings = append(listings, l)
		}

		if len(listings) == 1 {
			res := env.Enricher.Enrich(ctx, listings[0], profile, sources)
			zap.L().Info("enrichment complete",
				zap.String("listing_id", res.ListingID),
				zap.Float64("completeness", res.Completeness),
			)
			return printJSON(cmd.OutOrStdout(), res)
		}

		results, err := env.Enricher.EnrichBatch(ctx, listings, profile, sources)
		if err != nil {
			return err
		}
		zap.L().Info("batch enrichment complete", zap.Int("listings", len(results)))
		return printJSON(cmd.OutOrStdout(), results)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichProfilePath, "profile", "", "path to client profile JSON")
	enrichCmd.Flags().StringSliceVar(&enrichSources, "sources", nil, "comma-separated sources (default all)")
	rootCmd.AddCommand(enrichCmd)
}
