package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-pipeline/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit trail as a CSV or XLSX report",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := export.LoadAuditRecords(cfg.Pipeline.OutputLocation)
		if err != nil {
			return err
		}
		rows := export.Rows(records)

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("invoices-%s.%s", time.Now().Format("2006-01-02"), exportFormat)
		}

		switch exportFormat {
		case "csv":
			err = export.WriteCSV(out, rows)
		case "xlsx":
			err = export.WriteXLSX(out, rows)
		default:
			return fmt.Errorf("unknown format %q (want csv or xlsx)", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", out),
			zap.Int("rows", len(rows)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default invoices-<date>.<format>)")
	rootCmd.AddCommand(exportCmd)
}
