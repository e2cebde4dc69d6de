package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dreamseed2025/formation-intake/internal/store"
)

var (
	callsStage  int
	callsRecord string
	callsLimit  int
	callsJSON   bool
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List processed call transcripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		transcripts, err := st.ListCallTranscripts(cmd.Context(), store.TranscriptFilter{
			Stage:    callsStage,
			RecordID: callsRecord,
			Limit:    callsLimit,
		})
		if err != nil {
			return err
		}

		if callsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(transcripts)
		}

		fmt.Printf("%-38s %5s %-38s %10s %9s %8s\n",
			"CALL", "STAGE", "RECORD", "CONFIDENCE", "SENTIMENT", "FIELDS")
		for _, t := range transcripts {
			fmt.Printf("%-38s %5d %-38s %10.2f %9.2f %8d\n",
				t.CallID, t.Stage, t.FormationRecordID, t.Confidence, t.Sentiment, len(t.Extracted))
		}
		return nil
	},
}

var callShowCmd = &cobra.Command{
	Use:   "show <call-id>",
	Short: "Show one call's transcript and extracted fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.GetCallTranscript(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if t == nil {
			return eris.Errorf("call not found: %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	},
}

func init() {
	callsCmd.Flags().IntVar(&callsStage, "stage", 0, "filter by call stage")
	callsCmd.Flags().StringVar(&callsRecord, "record", "", "filter by formation record id")
	callsCmd.Flags().IntVar(&callsLimit, "limit", 50, "maximum rows")
	callsCmd.Flags().BoolVar(&callsJSON, "json", false, "output JSON")
	callsCmd.AddCommand(callShowCmd)
	rootCmd.AddCommand(callsCmd)
}
