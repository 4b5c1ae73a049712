package kyc

import (
	"fmt"
	"regexp"
	"strings"
)

// Flag texts shared across packages.
const (
	FlagMalformedOutput  = "LLM output malformed"
	FlagLLMFailed        = "LLM validation failed"
	FlagNoDocuments      = "No documents attached"
	FlagMismatch         = "Name/DOB mismatch across documents"
	FlagStaleAddress     = "Address proof older than 3 months"
	flagExpiredPrefix    = "ID expired "
	flagExpiresInPrefix  = "ID expires in "
	flagMissingDocPrefix = "Missing required document: "
)

// ExpiredFlag renders the expiry override flag.
func ExpiredFlag(days int) string {
	return fmt.Sprintf("%s%d days ago", flagExpiredPrefix, days)
}

// ExpiresInFlag renders the upcoming expiry warning.
func ExpiresInFlag(days int) string {
	return fmt.Sprintf("%s%d days", flagExpiresInPrefix, days)
}

// MissingDocumentFlag renders the completeness flag for a role.
func MissingDocumentFlag(role DocumentRole) string {
	return flagMissingDocPrefix + string(role)
}

// UnparsableDateFlag renders the flag for a date field kept raw.
func UnparsableDateFlag(field string) string {
	return "unparsable date: " + field
}

// UnreadableDocumentFlag renders the flag for a document that failed extraction.
func UnreadableDocumentFlag(file string) string {
	return "Document unreadable: " + file
}

// expiryFlagPattern matches flags that assert an expired ID, such as
// "ID expired 4 days ago" or "Document has expired on 2024-01-01". The
// assertion must lead the flag so "Checked whether ID expired: no" is ignored.
var expiryFlagPattern = regexp.MustCompile(`(?i)^(the\s+)?(id|document)\s+(has\s+)?expired(\s|[.(,;]|$)`)

// IsExpiryFlag reports whether a flag signals an expired ID.
func IsExpiryFlag(flag string) bool {
	return expiryFlagPattern.MatchString(strings.TrimSpace(flag))
}

// HasExpiryFlag reports whether any flag signals an expired ID.
func HasExpiryFlag(flags []string) bool {
	for _, f := range flags {
		if IsExpiryFlag(f) {
			return true
		}
	}
	return false
}

// AppendFlags appends flags in order, skipping blanks and duplicates.
func AppendFlags(flags []string, add ...string) []string {
	for _, f := range add {
		f = strings.TrimSpace(f)
		if f == "" || containsFlag(flags, f) {
			continue
		}
		flags = append(flags, f)
	}
	return flags
}

func containsFlag(flags []string, f string) bool {
	for _, existing := range flags {
		if existing == f {
			return true
		}
	}
	return false
}
