package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

const scannedText = `請求書
株式会社リンク
発行日: 2025年3月1日
小計 ¥44,000
消費税 ¥4,400
合計 ¥48,400
お支払期日: 2025年4月30日
`

func TestNormalize_TextFallbackRecoversFields(t *testing.T) {
	n := New(0.01)
	inv := n.Normalize(model.RawExtraction{
		SourceObjectID: "invoices/stamped.pdf",
		Entities:       nil,
		Text:           scannedText,
	})

	assert.Equal(t, "株式会社リンク", inv.VendorName)
	assert.Equal(t, "2025-04-30", inv.DueDate)
	assert.Equal(t, "JPY", inv.Currency)

	require.NotNil(t, inv.TotalAmount)
	assert.InDelta(t, 48400, *inv.TotalAmount, 1e-9)
	require.NotNil(t, inv.Subtotal)
	assert.InDelta(t, 44000, *inv.Subtotal, 1e-9)
	require.NotNil(t, inv.TaxAmount)
	assert.InDelta(t, 4400, *inv.TaxAmount, 1e-9)

	// Recovered fields clear their missing warnings; the invoice number has
	// no text pattern and stays flagged.
	fields := map[string]bool{}
	for _, w := range inv.Warnings {
		if w.Kind == model.WarnMissingField {
			fields[w.Field] = true
		}
	}
	assert.False(t, fields["vendor_name"])
	assert.False(t, fields["total_amount"])
	assert.True(t, fields["invoice_number"])

	// No entity contributed, so there is no confidence signal.
	assert.Zero(t, inv.ExtractionConfidence)
}

func TestNormalize_EntitiesWinOverTextFallback(t *testing.T) {
	n := New(0.01)
	inv := n.Normalize(model.RawExtraction{
		SourceObjectID: "invoices/partial.pdf",
		Entities: []model.Entity{
			{Type: "supplier_name", MentionText: "株式会社テスト商事", Confidence: 0.95},
			{Type: "total_amount", MentionText: "¥99,000", Confidence: 0.96},
		},
		Text: scannedText,
	})

	// The entity pass resolved vendor and total; the text only fills what is
	// still open.
	assert.Equal(t, "株式会社テスト商事", inv.VendorName)
	require.NotNil(t, inv.TotalAmount)
	assert.InDelta(t, 99000, *inv.TotalAmount, 1e-9)

	require.NotNil(t, inv.Subtotal)
	assert.InDelta(t, 44000, *inv.Subtotal, 1e-9)
	assert.Equal(t, "2025-04-30", inv.DueDate)
}

func TestExtractFromText_ShortTextIgnored(t *testing.T) {
	f := extractFromText("合計 ¥48,400")
	assert.Empty(t, f.vendor)
	assert.Nil(t, f.total)
}

func TestExtractFromText_IssueDateIsNotADeadline(t *testing.T) {
	text := `株式会社サンプル電力
検針日: 2025年3月10日 発行日: 2025年3月12日 ご請求金額 ¥12,340
`
	f := extractFromText(text)
	require.NotNil(t, f.total)
	assert.InDelta(t, 12340, *f.total, 1e-9)
	assert.Empty(t, f.dueDate)
}

func TestExtractFromText_InvalidDeadlineDropped(t *testing.T) {
	text := `株式会社サンプル
小計 ¥1,000 合計 ¥1,100
支払期限 2025年2月30日
`
	f := extractFromText(text)
	assert.Empty(t, f.dueDate)
	require.NotNil(t, f.total)
	assert.InDelta(t, 1100, *f.total, 1e-9)
}
