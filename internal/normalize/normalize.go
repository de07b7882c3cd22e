// Package normalize converts a raw extraction-service response into the
// canonical invoice record. Normalization is a pure transform: malformed or
// missing fields become warnings on the record, never errors.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

// Entity type synonyms per canonical field, in preference order. Extraction
// processors disagree on naming; matching is case-insensitive on substrings,
// the way the upstream processors report subtypes (e.g. "supplier_name" vs
// "vendor_name").
var (
	vendorTypes   = []string{"supplier_name", "vendor_name", "seller_name", "merchant_name", "remit_to_name"}
	invoiceTypes  = []string{"invoice_id", "invoice_number", "invoice_no"}
	issueTypes    = []string{"invoice_date", "issue_date", "receipt_date"}
	dueTypes      = []string{"due_date", "payment_due_date", "payment_terms_due_date"}
	currencyTypes = []string{"currency"}
	totalTypes    = []string{"total_amount", "amount_due", "grand_total", "total"}
	subtotalTypes = []string{"subtotal", "net_amount", "amount_due_excluding_tax"}
	taxTypes      = []string{"total_tax_amount", "tax_amount", "vat", "consumption_tax"}
)

// Normalizer turns raw extractions into canonical invoices.
type Normalizer struct {
	tolerance float64
}

// New creates a Normalizer. tolerance bounds the allowed difference between
// the line-item sum and the invoice total before an amount-mismatch warning
// is recorded; zero or negative falls back to one minor currency unit.
func New(tolerance float64) *Normalizer {
	if tolerance <= 0 {
		tolerance = 0.01
	}
	return &Normalizer{tolerance: tolerance}
}

// Normalize builds the canonical invoice for one raw extraction. It never
// fails: unresolvable required fields are left empty and flagged with a
// missing_field warning so the orchestrator can decide downstream.
func (n *Normalizer) Normalize(raw model.RawExtraction) model.CanonicalInvoice {
	inv := model.CanonicalInvoice{
		SourceObjectID: raw.SourceObjectID,
	}

	var confSum float64
	var confCount int
	track := func(e *model.Entity) {
		if e != nil {
			confSum += e.Confidence
			confCount++
		}
	}

	if e := bestEntity(raw.Entities, vendorTypes); e != nil {
		inv.VendorName = cleanText(entityText(e))
		track(e)
	}

	if e := bestEntity(raw.Entities, invoiceTypes); e != nil {
		inv.InvoiceNumber = cleanText(entityText(e))
		track(e)
	}
	if inv.InvoiceNumber == "" {
		inv.AddWarning(model.Warning{Kind: model.WarnMissingField, Field: "invoice_number"})
	}

	if e := bestEntity(raw.Entities, issueTypes); e != nil {
		track(e)
		if d, ok := ParseDate(entityText(e)); ok {
			inv.IssueDate = d
		} else {
			inv.AddWarning(model.Warning{Kind: model.WarnUnparseableDate, Field: "issue_date", Detail: e.MentionText})
		}
	}

	if e := bestEntity(raw.Entities, dueTypes); e != nil {
		track(e)
		if d, ok := ParseDate(entityText(e)); ok {
			inv.DueDate = d
		} else {
			inv.AddWarning(model.Warning{Kind: model.WarnUnparseableDate, Field: "due_date", Detail: e.MentionText})
		}
	}

	if e := bestEntity(raw.Entities, currencyTypes); e != nil {
		inv.Currency = strings.ToUpper(cleanText(entityText(e)))
		track(e)
	}

	inv.TotalAmount = n.amountField(&inv, raw.Entities, totalTypes, "total_amount", track)
	inv.Subtotal = n.amountField(&inv, raw.Entities, subtotalTypes, "subtotal", track)

	// When the entity pass leaves core fields unresolved, scan the raw OCR
	// text before declaring them missing. Fallback values carry no
	// confidence signal, so they never feed the confidence average.
	if inv.VendorName == "" || inv.TotalAmount == nil || inv.Subtotal == nil || inv.DueDate == "" {
		fb := extractFromText(raw.Text)
		if inv.VendorName == "" {
			inv.VendorName = fb.vendor
		}
		if inv.TotalAmount == nil {
			inv.TotalAmount = fb.total
			if fb.total != nil && inv.Currency == "" {
				inv.Currency = currencyFromText(fb.totalRaw)
			}
		}
		if inv.Subtotal == nil {
			inv.Subtotal = fb.subtotal
		}
		if inv.DueDate == "" {
			inv.DueDate = fb.dueDate
		}
	}

	if inv.VendorName == "" {
		inv.AddWarning(model.Warning{Kind: model.WarnMissingField, Field: "vendor_name"})
	}
	if inv.TotalAmount == nil {
		inv.AddWarning(model.Warning{Kind: model.WarnMissingField, Field: "total_amount"})
	}

	// Tax is derived when both total and subtotal resolved, otherwise taken
	// from its own entity. Derivation wins because extracted tax lines are
	// the least reliable field on scanned invoices.
	if inv.TotalAmount != nil && inv.Subtotal != nil {
		tax := round2(*inv.TotalAmount - *inv.Subtotal)
		inv.TaxAmount = &tax
	} else {
		inv.TaxAmount = n.amountField(&inv, raw.Entities, taxTypes, "tax_amount", track)
	}

	if inv.Currency == "" {
		if e := bestEntity(raw.Entities, totalTypes); e != nil {
			inv.Currency = currencyFromText(e.MentionText)
		}
	}

	inv.LineItems = lineItems(raw.Entities)
	n.checkAmountMismatch(&inv)

	if confCount > 0 {
		inv.ExtractionConfidence = confSum / float64(confCount)
	}

	return inv
}

// amountField resolves one monetary field, recording an unparseable_amount
// warning when the entity exists but its text cannot be read as a number.
func (n *Normalizer) amountField(inv *model.CanonicalInvoice, entities []model.Entity, types []string, field string, track func(*model.Entity)) *float64 {
	e := bestEntity(entities, types)
	if e == nil {
		return nil
	}
	track(e)
	v, ok := ParseAmount(entityText(e))
	if !ok {
		inv.AddWarning(model.Warning{Kind: model.WarnUnparseableAmount, Field: field, Detail: e.MentionText})
		return nil
	}
	return &v
}

// checkAmountMismatch verifies the line-item sum against the invoice total.
// A mismatch is a warning, not a failure: the total stays authoritative.
func (n *Normalizer) checkAmountMismatch(inv *model.CanonicalInvoice) {
	if len(inv.LineItems) == 0 || inv.TotalAmount == nil {
		return
	}
	var sum float64
	for _, li := range inv.LineItems {
		sum += li.Amount
	}
	if diff := sum - *inv.TotalAmount; diff > n.tolerance || diff < -n.tolerance {
		inv.AddWarning(model.Warning{Kind: model.WarnAmountMismatch, Field: "total_amount"})
	}
}

// bestEntity selects the entity for a canonical field: the first synonym type
// with any hits wins, then highest confidence, then longer mention text
// (assumed more complete). Deterministic for a fixed input.
func bestEntity(entities []model.Entity, types []string) *model.Entity {
	for _, t := range types {
		var best *model.Entity
		for i := range entities {
			e := &entities[i]
			if !strings.Contains(strings.ToLower(e.Type), t) {
				continue
			}
			if best == nil ||
				e.Confidence > best.Confidence ||
				(e.Confidence == best.Confidence && len(e.MentionText) > len(best.MentionText)) {
				best = e
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// entityText prefers the processor's normalized value over the raw mention.
func entityText(e *model.Entity) string {
	if e.NormalizedValue != "" {
		return e.NormalizedValue
	}
	return e.MentionText
}

// cleanText folds full-width characters to their half-width forms, applies
// NFKC, and collapses runs of whitespace. Scanned Japanese invoices mix both
// widths freely.
func cleanText(s string) string {
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// lineItems assembles normalized lines from line_item entities and their
// nested property entities.
func lineItems(entities []model.Entity) []model.LineItem {
	var items []model.LineItem
	for _, e := range entities {
		if !strings.Contains(strings.ToLower(e.Type), "line_item") {
			continue
		}
		var li model.LineItem
		for _, p := range e.Properties {
			key := p.Type
			if idx := strings.LastIndex(key, "/"); idx >= 0 {
				key = key[idx+1:]
			}
			switch strings.ToLower(key) {
			case "description":
				li.Description = cleanText(entityText(&p))
			case "quantity":
				if v, ok := ParseAmount(entityText(&p)); ok {
					li.Quantity = v
				}
			case "unit_price":
				if v, ok := ParseAmount(entityText(&p)); ok {
					li.UnitPrice = v
				}
			case "amount":
				if v, ok := ParseAmount(entityText(&p)); ok {
					li.Amount = v
				}
			}
		}
		if li.Description == "" && li.Amount == 0 && li.Quantity == 0 {
			continue
		}
		items = append(items, li)
	}
	return items
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
