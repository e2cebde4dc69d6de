package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamseed2025/formation-intake/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "formation-intake",
	Short: "Webhook-driven call transcript extraction for business formation",
	Long:  "Ingests voice-provider call webhooks, extracts structured formation fields from transcripts, and maintains per-customer formation records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
