package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fortunegate/internal/pool"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect and fill the cohort result pool",
}

var (
	generateType       string
	generateMaxCohorts int
	generateTargetSize int
	statsType          string
)

var poolGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Pre-generate pool results for one fortune type, or all active types",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(ctx)
		if err := a.withGeneration(ctx); err != nil {
			return err
		}

		if generateType == "" {
			reports, err := a.generator.GenerateAll(ctx, generateMaxCohorts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reports)
		}

		report, err := a.generator.Generate(ctx, pool.GenerateRequest{
			FortuneType: generateType,
			MaxCohorts:  generateMaxCohorts,
			TargetSize:  generateTargetSize,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var poolStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print pool statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		stats, err := a.pool.Stats(ctx, statsType)
		if err != nil {
			return err
		}
		if stats == nil {
			stats = []pool.Stats{}
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var poolSeedCmd = &cobra.Command{
	Use:   "seed-settings",
	Short: "Write the built-in cohort dimensions into cohort_pool_settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		n, err := pool.Seed(ctx, a.settings, a.registry)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d fortune types\n", n)
		return err
	},
}

func init() {
	poolGenerateCmd.Flags().StringVar(&generateType, "type", "", "fortune type (empty runs every active type)")
	poolGenerateCmd.Flags().IntVar(&generateMaxCohorts, "max-cohorts", 10, "cohorts to process per type")
	poolGenerateCmd.Flags().IntVar(&generateTargetSize, "target-size", 0, "results per cohort (0 uses the settings)")
	poolStatsCmd.Flags().StringVar(&statsType, "type", "", "fortune type (empty lists all)")

	poolCmd.AddCommand(poolGenerateCmd, poolStatsCmd, poolSeedCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
