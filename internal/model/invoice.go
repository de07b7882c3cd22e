package model

// WarningKind classifies non-fatal problems recorded on a canonical invoice.
type WarningKind string

const (
	WarnMissingField      WarningKind = "missing_field"
	WarnAmountMismatch    WarningKind = "amount_mismatch"
	WarnNoMatch           WarningKind = "no_match"
	WarnUnparseableDate   WarningKind = "unparseable_date"
	WarnUnparseableAmount WarningKind = "unparseable_amount"
)

// Warning records one non-fatal issue found while processing a document.
// Warnings never abort the pipeline; they travel with the invoice into the
// audit record so operators can triage downstream.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Field  string      `json:"field,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// LineItem is a single normalized invoice line.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// CanonicalInvoice is the pipeline's central record: the normalized,
// schema-conformant view of one invoice, independent of the entity shape the
// extraction service returned. SourceObjectID is set once at creation and
// never mutated.
type CanonicalInvoice struct {
	SourceObjectID string `json:"source_object_id"`

	VendorName    string `json:"vendor_name,omitempty"`
	VendorCode    string `json:"vendor_code,omitempty"` // empty until matched
	InvoiceNumber string `json:"invoice_number,omitempty"`

	// Dates are civil dates in YYYY-MM-DD form; empty means unresolved.
	IssueDate string `json:"issue_date,omitempty"`
	DueDate   string `json:"due_date,omitempty"`

	Currency    string   `json:"currency,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
	Subtotal    *float64 `json:"subtotal,omitempty"`   // amount excluding tax
	TaxAmount   *float64 `json:"tax_amount,omitempty"` // derived as total-subtotal when both resolve

	LineItems []LineItem `json:"line_items,omitempty"`

	ExtractionConfidence float64   `json:"extraction_confidence"`
	Warnings             []Warning `json:"warnings,omitempty"`
}

// AddWarning appends a warning unless an identical one is already present.
func (inv *CanonicalInvoice) AddWarning(w Warning) {
	for _, existing := range inv.Warnings {
		if existing == w {
			return
		}
	}
	inv.Warnings = append(inv.Warnings, w)
}

// HasWarning reports whether any warning of the given kind is present.
func (inv *CanonicalInvoice) HasWarning(kind WarningKind) bool {
	for _, w := range inv.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
