package master

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// jpLegalForms covers the Japanese corporate designators vendors write (or
// OCR mangles) inconsistently, including the circled abbreviation ㈱.
var jpLegalForms = regexp.MustCompile(`株式会社|有限会社|合同会社|合資会社|（株）|\(株\)|㈱|（有）|\(有\)|㈲`)

// enLegalSuffixes strips trailing Latin entity suffixes before comparison.
var enLegalSuffixes = regexp.MustCompile(
	`(?i)\s*,?\s*(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|` +
		`CO\.?|COMPANY|LTD\.?|LIMITED|L\.?P\.?|LLP|PLLC|P\.?C\.?|K\.?K\.?|G\.?K\.?)\s*\.?\s*$`)

// NormalizeName canonicalizes a company name for comparison: width folding
// and NFKC (full-width Latin and half-width kana are rampant on scanned
// invoices), legal-form removal on both the Japanese and Latin conventions,
// case folding, and whitespace removal.
func NormalizeName(name string) string {
	n := width.Fold.String(name)
	n = norm.NFKC.String(n)
	n = jpLegalForms.ReplaceAllString(n, "")
	n = strings.TrimSpace(n)
	n = enLegalSuffixes.ReplaceAllString(n, "")
	n = strings.ToLower(n)
	n = strings.Join(strings.Fields(n), "")
	return n
}
