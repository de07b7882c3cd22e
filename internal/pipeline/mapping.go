package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/invoice-pipeline/internal/model"
	"github.com/sells-group/invoice-pipeline/pkg/kintone"
)

// FieldMapping translates canonical invoice attributes to the record store's
// field codes. The target app's schema is deployment configuration, not
// code: mappings load from a YAML file, and an empty mapping drops the
// attribute from the outgoing record.
type FieldMapping struct {
	VendorName     string `yaml:"vendor_name"`
	VendorCode     string `yaml:"vendor_code"`
	InvoiceNumber  string `yaml:"invoice_number"`
	IssueDate      string `yaml:"issue_date"`
	DueDate        string `yaml:"due_date"`
	Currency       string `yaml:"currency"`
	TotalAmount    string `yaml:"total_amount"`
	Subtotal       string `yaml:"subtotal"`
	TaxAmount      string `yaml:"tax_amount"`
	SourceObjectID string `yaml:"source_object_id"`
}

// DefaultFieldMapping matches the field codes of the stock invoice app.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		VendorName:     "vendor",
		VendorCode:     "vendor_code",
		InvoiceNumber:  "invoice_number",
		IssueDate:      "issue_date",
		DueDate:        "due_date",
		Currency:       "currency",
		TotalAmount:    "amount_incl_tax",
		Subtotal:       "amount_excl_tax",
		TaxAmount:      "tax_amount",
		SourceObjectID: "source_object",
	}
}

// LoadFieldMapping reads the mapping table from a YAML file. An empty path
// returns the default mapping.
func LoadFieldMapping(path string) (FieldMapping, error) {
	if path == "" {
		return DefaultFieldMapping(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldMapping{}, eris.Wrapf(err, "pipeline: read field mapping %s", path)
	}
	var m FieldMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return FieldMapping{}, eris.Wrapf(err, "pipeline: parse field mapping %s", path)
	}
	return m, nil
}

// RecordFor builds the outgoing record for one canonical invoice and its
// match result. Unresolved attributes and unmapped fields are omitted rather
// than sent as empty strings, so the record store keeps its own defaults.
func (m FieldMapping) RecordFor(inv model.CanonicalInvoice, match model.MatchResult) kintone.Record {
	rec := kintone.Record{}

	setText := func(code, value string) {
		if code != "" && value != "" {
			rec[code] = kintone.Field{Value: value}
		}
	}
	setAmount := func(code string, value *float64) {
		if code != "" && value != nil {
			rec[code] = kintone.Field{Value: *value}
		}
	}

	setText(m.VendorName, inv.VendorName)
	if match.Method != model.MatchNone {
		setText(m.VendorCode, match.MatchedCode)
	}
	setText(m.InvoiceNumber, inv.InvoiceNumber)
	setText(m.IssueDate, inv.IssueDate)
	setText(m.DueDate, inv.DueDate)
	setText(m.Currency, inv.Currency)
	setText(m.SourceObjectID, inv.SourceObjectID)
	setAmount(m.TotalAmount, inv.TotalAmount)
	setAmount(m.Subtotal, inv.Subtotal)
	setAmount(m.TaxAmount, inv.TaxAmount)

	return rec
}
