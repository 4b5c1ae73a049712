package fieldparser

import (
	"strings"
	"time"

	"kyc-backend/internal/kyc"
)

// Day-first layouts come before month-first ones so 03/04/2020 reads as 3 April.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// NormalizeDate converts raw to YYYY-MM-DD. present is false for empty or
// placeholder values; ok is false when a present value could not be parsed.
func NormalizeDate(raw string) (value string, present bool, ok bool) {
	clean := strings.TrimSpace(raw)
	if isAbsent(clean) {
		return "", false, true
	}
	clean = strings.Join(strings.Fields(clean), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t.Format(kyc.DateLayout), true, true
		}
	}
	return clean, true, false
}

func isAbsent(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "null", "none", "-", "unknown", "not available":
		return true
	default:
		return false
	}
}
