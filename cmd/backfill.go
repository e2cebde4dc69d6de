package main

import (
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamseed2025/formation-intake/internal/webhook"
	"github.com/dreamseed2025/formation-intake/pkg/vapi"
)

var (
	backfillStage int
	backfillSince time.Duration
	backfillLimit int
	backfillDry   bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Reprocess historical calls fetched from the provider API",
	Long:  "Fetches ended calls per stage assistant from the provider and runs them through the same extract+persist path as live webhooks. Calls that already have a transcript record are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		handler, err := initHandler(ctx, st)
		if err != nil {
			return err
		}

		client := vapi.NewClient(cfg.VAPI.APIKey, vapi.WithBaseURL(cfg.VAPI.BaseURL))
		since := time.Now().UTC().Add(-backfillSince)

		stages := map[int]string{}
		for stage, assistantID := range cfg.VAPI.Assistants {
			if backfillStage == 0 || backfillStage == stage {
				stages[stage] = assistantID
			}
		}

		var processed, skipped, failed atomic.Int64
		for stage, assistantID := range stages {
			calls, err := client.ListCalls(ctx, vapi.ListFilter{
				AssistantID:  assistantID,
				CreatedAtGte: since,
				Limit:        backfillLimit,
			})
			if err != nil {
				return err
			}
			zap.L().Info("backfill: fetched calls",
				zap.Int("stage", stage),
				zap.Int("count", len(calls)),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(cfg.Backfill.Concurrency)

			for _, call := range calls {
				g.Go(func() error {
					if call.Status != "ended" || call.Transcript == "" {
						skipped.Add(1)
						return nil
					}

					existing, err := st.GetCallTranscript(gctx, call.ID)
					if err != nil {
						return err
					}
					if existing != nil {
						skipped.Add(1)
						return nil
					}

					if backfillDry {
						zap.L().Info("backfill: would process",
							zap.Int("stage", stage),
							zap.String("call_id", call.ID),
						)
						processed.Add(1)
						return nil
					}

					if _, err := handler.ProcessCall(gctx, stage, asWebhookCall(call)); err != nil {
						// One bad call should not abort the whole backfill.
						zap.L().Warn("backfill: call failed",
							zap.Int("stage", stage),
							zap.String("call_id", call.ID),
							zap.Error(err),
						)
						failed.Add(1)
						return nil
					}
					processed.Add(1)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}

		zap.L().Info("backfill complete",
			zap.Int64("processed", processed.Load()),
			zap.Int64("skipped", skipped.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

// asWebhookCall converts a provider API call into the webhook payload shape
// so backfill reuses the live ingestion path unchanged.
func asWebhookCall(c vapi.Call) webhook.Call {
	out := webhook.Call{
		ID:              c.ID,
		AssistantID:     c.AssistantID,
		Transcript:      c.Transcript,
		Summary:         c.Summary,
		DurationSeconds: c.DurationSeconds,
		Status:          c.Status,
		EndedReason:     c.EndedReason,
	}
	out.Customer.Number = c.Customer.Number
	for _, m := range c.Messages {
		out.Messages = append(out.Messages, webhook.Message{Role: m.Role, Message: m.Message})
	}
	return out
}

func init() {
	backfillCmd.Flags().IntVar(&backfillStage, "stage", 0, "only this call stage (default all)")
	backfillCmd.Flags().DurationVar(&backfillSince, "since", 30*24*time.Hour, "how far back to fetch calls")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 500, "maximum calls per stage")
	backfillCmd.Flags().BoolVar(&backfillDry, "dry-run", false, "report without writing")
	rootCmd.AddCommand(backfillCmd)
}
