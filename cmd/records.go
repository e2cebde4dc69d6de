package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dreamseed2025/formation-intake/internal/model"
	"github.com/dreamseed2025/formation-intake/internal/resolve"
	"github.com/dreamseed2025/formation-intake/internal/store"
)

var (
	recordsStatus string
	recordsLimit  int
	recordsJSON   bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List formation records",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListFormationRecords(cmd.Context(), store.RecordFilter{
			Status: recordsStatus,
			Limit:  recordsLimit,
		})
		if err != nil {
			return err
		}

		if recordsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		fmt.Printf("%-38s %-24s %-24s %-18s %6s\n",
			"RECORD", "CUSTOMER", "BUSINESS", "STATUS", "STAGES")
		for _, r := range records {
			done := 0
			for n := 1; n <= model.StageCount; n++ {
				if r.StageComplete(n) {
					done++
				}
			}
			// The name column stays empty in storage until extraction fills
			// it; derive a display label for listings.
			name := r.CustomerName
			if name == "" {
				name = resolve.PlaceholderName(r.CustomerEmail)
			}
			fmt.Printf("%-38s %-24s %-24s %-18s %3d/%d\n",
				r.ID, name, r.BusinessName, r.Status, done, model.StageCount)
		}
		return nil
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsStatus, "status", "", "filter by record status")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 50, "maximum rows")
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "output JSON")
	rootCmd.AddCommand(recordsCmd)
}
