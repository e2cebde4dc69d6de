package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamseed2025/formation-intake/internal/analytics"
)

var statusLookbackDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show intake throughput per call stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := analytics.NewCollector(st).Collect(cmd.Context(), statusLookbackDays)
		if err != nil {
			return err
		}

		fmt.Printf("Intake over the last %d days: %d calls, %d completed\n\n",
			snap.LookbackDays, snap.TotalCalls, snap.TotalCompleted)
		fmt.Printf("%-6s %8s %10s %12s %11s\n", "STAGE", "CALLS", "COMPLETED", "CONFIDENCE", "SENTIMENT")
		for _, s := range snap.Stages {
			fmt.Printf("%-6d %8d %9d%% %12.2f %11.2f\n",
				s.Stage, s.Calls, int(s.CompletionPct), s.AvgConfidence, s.AvgSentiment)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLookbackDays, "days", 7, "lookback window in days")
	rootCmd.AddCommand(statusCmd)
}
