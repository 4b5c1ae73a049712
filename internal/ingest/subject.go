package ingest

import (
	"regexp"
	"strings"

	"kyc-backend/internal/kyc"
)

var (
	digitRun      = regexp.MustCompile(`\d{4,}`)
	explicitID    = regexp.MustCompile(`(?i)\bID\s*:\s*([A-Za-z0-9]+)`)
	customerToken = regexp.MustCompile(`(?i)\bCUST[-_]?[A-Za-z0-9]*\d[A-Za-z0-9]*\b`)
)

// ExtractCustomerID returns the customer id carried by a KYC subject line. It
// accepts a 4+ digit run when the subject mentions KYC, an "ID:" prefixed token,
// or a CUST-prefixed token. The earliest qualifying token wins.
func ExtractCustomerID(subject string) (string, error) {
	type hit struct {
		start int
		token string
	}
	var best *hit
	consider := func(start int, token string) {
		if token == "" {
			return
		}
		if best == nil || start < best.start {
			best = &hit{start: start, token: token}
		}
	}

	if strings.Contains(strings.ToUpper(subject), "KYC") {
		if loc := digitRun.FindStringIndex(subject); loc != nil {
			consider(loc[0], subject[loc[0]:loc[1]])
		}
	}
	if m := explicitID.FindStringSubmatchIndex(subject); m != nil {
		consider(m[2], subject[m[2]:m[3]])
	}
	if loc := customerToken.FindStringIndex(subject); loc != nil {
		consider(loc[0], subject[loc[0]:loc[1]])
	}

	if best == nil {
		return "", &kyc.ParseError{Subject: subject}
	}
	return best.token, nil
}
