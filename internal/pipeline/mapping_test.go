package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestRecordFor_FullInvoice(t *testing.T) {
	m := DefaultFieldMapping()
	inv := model.CanonicalInvoice{
		SourceObjectID: "inbox/inv-001.pdf",
		VendorName:     "株式会社テスト商事",
		InvoiceNumber:  "INV-2025-001",
		IssueDate:      "2025-03-31",
		DueDate:        "2025-04-30",
		Currency:       "JPY",
		TotalAmount:    ptr(48400),
		Subtotal:       ptr(44000),
		TaxAmount:      ptr(4400),
	}
	match := model.MatchResult{MatchedCode: "TS02", Method: model.MatchExact, Score: 1.0}

	rec := m.RecordFor(inv, match)

	assert.Equal(t, "株式会社テスト商事", rec["vendor"].Value)
	assert.Equal(t, "TS02", rec["vendor_code"].Value)
	assert.Equal(t, "INV-2025-001", rec["invoice_number"].Value)
	assert.Equal(t, "2025-03-31", rec["issue_date"].Value)
	assert.Equal(t, "2025-04-30", rec["due_date"].Value)
	assert.Equal(t, "JPY", rec["currency"].Value)
	assert.Equal(t, 48400.0, rec["amount_incl_tax"].Value)
	assert.Equal(t, 44000.0, rec["amount_excl_tax"].Value)
	assert.Equal(t, 4400.0, rec["tax_amount"].Value)
	assert.Equal(t, "inbox/inv-001.pdf", rec["source_object"].Value)
}

func TestRecordFor_OmitsUnresolvedFields(t *testing.T) {
	m := DefaultFieldMapping()
	inv := model.CanonicalInvoice{
		SourceObjectID: "inbox/partial.pdf",
		VendorName:     "Acme Corp",
	}

	rec := m.RecordFor(inv, model.MatchResult{Method: model.MatchNone})

	assert.Contains(t, rec, "vendor")
	assert.NotContains(t, rec, "vendor_code", "no code without a match")
	assert.NotContains(t, rec, "invoice_number")
	assert.NotContains(t, rec, "amount_incl_tax")
	assert.NotContains(t, rec, "issue_date")
}

func TestRecordFor_UnmappedFieldDropped(t *testing.T) {
	m := DefaultFieldMapping()
	m.Currency = ""
	inv := model.CanonicalInvoice{VendorName: "Acme Corp", Currency: "USD"}

	rec := m.RecordFor(inv, model.MatchResult{Method: model.MatchNone})
	assert.NotContains(t, rec, "currency")
	assert.NotContains(t, rec, "")
}

func TestLoadFieldMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"vendor_name: 取引先\ntotal_amount: 請求金額\nsource_object_id: 元ファイル\n"), 0o644))

	m, err := LoadFieldMapping(path)
	require.NoError(t, err)
	assert.Equal(t, "取引先", m.VendorName)
	assert.Equal(t, "請求金額", m.TotalAmount)
	assert.Equal(t, "元ファイル", m.SourceObjectID)
	assert.Empty(t, m.InvoiceNumber, "unlisted attributes stay unmapped")
}

func TestLoadFieldMapping_EmptyPathUsesDefault(t *testing.T) {
	m, err := LoadFieldMapping("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFieldMapping(), m)
}

func TestLoadFieldMapping_MissingFile(t *testing.T) {
	_, err := LoadFieldMapping(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
