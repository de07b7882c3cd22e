package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"
)

// dateLayouts are tried in order. Layouts without zero padding accept both
// padded and unpadded components, so "2024/3/7" and "2024/03/07" both parse.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"1/2/2006", // month-first; ambiguity resolved by position, as upstream processors emit it
	"2.1.2006", // day-first dotted
}

// jpDate matches Japanese calendar notation, e.g. 2025年3月31日.
var jpDate = regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`)

// embeddedDate recovers a date buried in surrounding text, e.g.
// "お支払期日: 2025-04-30 まで".
var embeddedDate = regexp.MustCompile(`(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})`)

// ParseDate normalizes extracted date text to an unambiguous YYYY-MM-DD
// string. Returns false when nothing recognizable is found.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return "", false
	}

	// RFC 3339 timestamps from processors that normalize upstream.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02"), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	if m := jpDate.FindStringSubmatch(s); m != nil {
		return civil(m[1], m[2], m[3])
	}
	if m := embeddedDate.FindStringSubmatch(s); m != nil {
		return civil(m[1], m[2], m[3])
	}

	return "", false
}

// civil validates year/month/day strings as a real calendar date.
func civil(y, mo, d string) (string, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(mo)
	day, _ := strconv.Atoi(d)

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", false // e.g. 2025-02-30 rolls over
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}
