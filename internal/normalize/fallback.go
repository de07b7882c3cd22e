package normalize

import (
	"regexp"
)

// Extraction processors occasionally return full-page OCR text with few or no
// usable entities — low-quality scans and stamped invoices are the usual
// cause. The patterns below recover the core fields straight from that text:
// the issuer by its corporate prefix, amounts by the label that precedes
// them, and the due date by payment-deadline labels only, so issue and
// billing dates are never mistaken for a deadline.
var (
	textVendor   = regexp.MustCompile(`(?:株式|有限|合同)会社[^\s　\n]+`)
	textTotal    = regexp.MustCompile(`(?:合計|ご請求金額|総額)[^\d¥￥]*[¥￥]?\s*([\d,]+)`)
	textSubtotal = regexp.MustCompile(`(?:小計|税抜金額|外税対象金額)[^\d¥￥]*[¥￥]?\s*([\d,]+)`)
	textDueDate  = regexp.MustCompile(`(?:支払期限|お支払期日|入金期日)[^\d]*(\d{4})[年/.\-](\d{1,2})[月/.\-](\d{1,2})`)
)

// minFallbackText is the shortest OCR text worth scanning, in bytes. Anything
// shorter is a fragment with no recoverable fields.
const minFallbackText = 40

// textFields holds whatever the text scan recovered. Nil and empty mean the
// pattern found nothing.
type textFields struct {
	vendor   string
	total    *float64
	totalRaw string
	subtotal *float64
	dueDate  string
}

// extractFromText scans full-page OCR text for the fields the entity pass
// failed to produce. It is strictly a fallback: callers only consult the
// result for fields still unresolved.
func extractFromText(text string) textFields {
	var f textFields
	if len(text) < minFallbackText {
		return f
	}

	if m := textVendor.FindString(text); m != "" {
		f.vendor = cleanText(m)
	}
	if m := textTotal.FindStringSubmatch(text); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			f.total = &v
			f.totalRaw = m[0]
		}
	}
	if m := textSubtotal.FindStringSubmatch(text); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			f.subtotal = &v
		}
	}
	if m := textDueDate.FindStringSubmatch(text); m != nil {
		if d, ok := civil(m[1], m[2], m[3]); ok {
			f.dueDate = d
		}
	}
	return f
}
