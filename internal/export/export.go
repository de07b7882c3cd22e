// Package export flattens the audit trail into spreadsheet-friendly rows for
// the accounting side: daily CSV batches and XLSX workbooks.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

// Row is one exported invoice line. Amounts stay formatted strings so
// unresolved fields export as blanks, not zeros.
type Row struct {
	SourceObjectID   string `csv:"source_object_id"`
	VendorName       string `csv:"vendor_name"`
	VendorCode       string `csv:"vendor_code"`
	InvoiceNumber    string `csv:"invoice_number"`
	IssueDate        string `csv:"issue_date"`
	DueDate          string `csv:"due_date"`
	Currency         string `csv:"currency"`
	TotalAmount      string `csv:"total_amount"`
	Subtotal         string `csv:"subtotal"`
	TaxAmount        string `csv:"tax_amount"`
	Status           string `csv:"status"`
	ExternalRecordID string `csv:"external_record_id"`
	Warnings         string `csv:"warnings"`
	ProcessedAt      string `csv:"processed_at"`
}

// LoadAuditRecords reads every audit JSON document under dir, sorted by
// source object ID for stable output.
func LoadAuditRecords(dir string) ([]model.AuditRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, eris.Wrapf(err, "export: glob %s", dir)
	}

	records := make([]model.AuditRecord, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "export: read %s", path)
		}
		var rec model.AuditRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrapf(err, "export: parse %s", path)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SourceObjectID < records[j].SourceObjectID
	})
	return records, nil
}

// Rows flattens audit records for export.
func Rows(records []model.AuditRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{
			SourceObjectID: rec.SourceObjectID,
			ProcessedAt:    rec.ProcessedAt.Format("2006-01-02 15:04:05"),
		}
		if inv := rec.CanonicalInvoice; inv != nil {
			row.VendorName = inv.VendorName
			row.VendorCode = inv.VendorCode
			row.InvoiceNumber = inv.InvoiceNumber
			row.IssueDate = inv.IssueDate
			row.DueDate = inv.DueDate
			row.Currency = inv.Currency
			row.TotalAmount = formatAmount(inv.TotalAmount)
			row.Subtotal = formatAmount(inv.Subtotal)
			row.TaxAmount = formatAmount(inv.TaxAmount)
		}
		if out := rec.UpsertOutcome; out != nil {
			row.Status = string(out.Status)
			row.ExternalRecordID = out.ExternalRecordID
		}
		kinds := make([]string, 0, len(rec.Warnings))
		for _, w := range rec.Warnings {
			kinds = append(kinds, string(w.Kind))
		}
		row.Warnings = strings.Join(kinds, ";")
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes rows as a CSV file with a header line.
func WriteCSV(path string, rows []Row) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "export: marshal csv")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// xlsxHeader mirrors the Row csv tags, in column order.
var xlsxHeader = []string{
	"source_object_id", "vendor_name", "vendor_code", "invoice_number",
	"issue_date", "due_date", "currency", "total_amount", "subtotal",
	"tax_amount", "status", "external_record_id", "warnings", "processed_at",
}

// WriteXLSX writes rows as a single-sheet workbook.
func WriteXLSX(path string, rows []Row) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("invoices")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, row := range rows {
		r := sheet.AddRow()
		for _, v := range []string{
			row.SourceObjectID, row.VendorName, row.VendorCode, row.InvoiceNumber,
			row.IssueDate, row.DueDate, row.Currency, row.TotalAmount, row.Subtotal,
			row.TaxAmount, row.Status, row.ExternalRecordID, row.Warnings, row.ProcessedAt,
		} {
			r.AddCell().SetString(v)
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
