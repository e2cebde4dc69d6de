package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/dreamseed2025/formation-intake/internal/model"
	"github.com/dreamseed2025/formation-intake/internal/store"
)

var (
	exportOut    string
	exportStatus string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export formation records to an XLSX workbook",
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
			Status: exportStatus,
			Limit:  exportLimit,
		})
		if err != nil {
			return err
		}

		if err := writeRecordsWorkbook(exportOut, records); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

var exportHeader = []string{
	"Record ID", "Customer", "Email", "Phone",
	"Business", "Type", "State", "Est. Revenue", "Registered Agent", "Address",
	"Status", "Stages Complete", "Created",
}

func writeRecordsWorkbook(path string, records []model.FormationRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Formation Records")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().Value = h
	}

	for _, r := range records {
		done := 0
		for n := 1; n <= model.StageCount; n++ {
			if r.StageComplete(n) {
				done++
			}
		}

		row := sheet.AddRow()
		for _, v := range []string{
			r.ID, r.CustomerName, r.CustomerEmail, r.CustomerPhone,
			r.BusinessName, r.BusinessType, r.StateOfFormation, r.EstimatedRevenue,
			r.RegisteredAgent, r.BusinessAddress,
			r.Status,
			fmt.Sprintf("%d/%d", done, model.StageCount),
			r.CreatedAt.UTC().Format(time.RFC3339),
		} {
			row.AddCell().Value = v
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "formation-records-"+strconv.Itoa(time.Now().Year())+".xlsx", "output path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by record status")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum rows")
	rootCmd.AddCommand(exportCmd)
}
