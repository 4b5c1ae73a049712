package compliance

import (
	"strings"
	"time"

	"kyc-backend/internal/kyc"
)

const (
	// DefaultWarningWindowDays is how far ahead an upcoming expiry is flagged.
	DefaultWarningWindowDays = 30
	// DefaultAddressMaxAgeDays approximates three calendar months.
	DefaultAddressMaxAgeDays = 92
)

// Facts are the inputs every rule may inspect. Rules never mutate them.
type Facts struct {
	Today     time.Time
	Expiry    time.Time
	HasExpiry bool
	Documents []kyc.Document
}

// Verdict is the status and flag list threaded through the rule chain.
type Verdict struct {
	Status kyc.Status
	Flags  []string
}

// Tighten returns v with status raised to at least s.
func (v Verdict) Tighten(s kyc.Status) Verdict {
	v.Status = kyc.Stricter(v.Status, s)
	return v
}

// Flag returns v with flags appended in order.
func (v Verdict) Flag(flags ...string) Verdict {
	v.Flags = kyc.AppendFlags(append([]string(nil), v.Flags...), flags...)
	return v
}

// Rule is one pure compliance check. It may only add flags or tighten status.
type Rule func(f Facts, v Verdict) Verdict

// Finalize applies rules in order. Any relaxation a rule attempts is discarded.
func Finalize(v Verdict, f Facts, rules ...Rule) Verdict {
	if !v.Status.Valid() {
		v.Status = kyc.StatusHumanReview
	}
	for _, rule := range rules {
		next := rule(f, v)
		next.Status = kyc.Stricter(v.Status, next.Status)
		v = next
	}
	return v
}

// ExpiryOverride rejects any submission whose ID expired before today.
func ExpiryOverride(f Facts, v Verdict) Verdict {
	if !f.HasExpiry {
		return v
	}
	days := kyc.DaysBetween(f.Expiry, f.Today)
	if days <= 0 {
		return v
	}
	return v.Tighten(kyc.StatusRejected).Flag(kyc.ExpiredFlag(days))
}

// ExpiryWarning flags IDs that expire within window days without changing status.
func ExpiryWarning(window int) Rule {
	return func(f Facts, v Verdict) Verdict {
		if !f.HasExpiry {
			return v
		}
		days := kyc.DaysBetween(f.Today, f.Expiry)
		if days < 0 || days > window {
			return v
		}
		return v.Flag(kyc.ExpiresInFlag(days))
	}
}

// Consistency flags disagreeing names or dates of birth across documents.
func Consistency(f Facts, v Verdict) Verdict {
	names := map[string]struct{}{}
	dobs := map[string]struct{}{}
	for _, doc := range f.Documents {
		if n := normalizeText(doc.Name); n != "" {
			names[n] = struct{}{}
		}
		if d := normalizeText(doc.DOB); d != "" {
			dobs[d] = struct{}{}
		}
	}
	if len(names) <= 1 && len(dobs) <= 1 {
		return v
	}
	return downgradeApproved(v).Flag(kyc.FlagMismatch)
}

// AddressRecency flags an address proof issued more than maxAgeDays ago.
// The newest address proof with a readable issue date decides.
func AddressRecency(maxAgeDays int) Rule {
	return func(f Facts, v Verdict) Verdict {
		var (
			newest time.Time
			found  bool
		)
		for _, doc := range f.Documents {
			if doc.Role != kyc.RoleAddressProof {
				continue
			}
			issued, ok := kyc.ParseDate(doc.IssuedOn)
			if !ok {
				continue
			}
			if !found || issued.After(newest) {
				newest, found = issued, true
			}
		}
		if !found || kyc.DaysBetween(newest, f.Today) <= maxAgeDays {
			return v
		}
		return downgradeApproved(v).Flag(kyc.FlagStaleAddress)
	}
}

// Completeness requires one document per required role.
func Completeness(f Facts, v Verdict) Verdict {
	present := map[kyc.DocumentRole]bool{}
	for _, doc := range f.Documents {
		present[doc.Role] = true
	}
	for _, role := range kyc.RequiredRoles {
		if present[role] {
			continue
		}
		v = v.Tighten(kyc.StatusHumanReview).Flag(kyc.MissingDocumentFlag(role))
	}
	return v
}

// FlagConsistency keeps status in line with flags: an expiry flag always rejects.
func FlagConsistency(_ Facts, v Verdict) Verdict {
	if kyc.HasExpiryFlag(v.Flags) {
		return v.Tighten(kyc.StatusRejected)
	}
	return v
}

func downgradeApproved(v Verdict) Verdict {
	if v.Status == kyc.StatusApproved {
		v.Status = kyc.StatusHumanReview
	}
	return v
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
