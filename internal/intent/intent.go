// Package intent classifies free-text operator commands.
package intent

import "strings"

// Intent is the classified purpose of an operator command.
type Intent string

const (
	SendNotifications Intent = "send_notifications"
	Revalidate        Intent = "revalidate"
	ShowExpired       Intent = "show_expired"
	ShowExpiringSoon  Intent = "show_expiring_soon"
	ShowFlagged       Intent = "show_flagged"
	ShowReport        Intent = "show_report"
	Unknown           Intent = "unknown"
)

// Classifier maps an utterance to an Intent. Implementations never fail;
// anything they cannot place is Unknown.
type Classifier interface {
	Classify(text string) Intent
}

type rule struct {
	intent   Intent
	keywords []string
}

// Rules are checked in order and the first match wins.
var defaultRules = []rule{
	{SendNotifications, []string{"send notification", "send email", "notify", "send reminder"}},
	{Revalidate, []string{"revalidate", "re-validate"}},
	{ShowExpired, []string{"expired"}},
	{ShowExpiringSoon, []string{"expiring", "expire soon", "expires soon"}},
	{ShowFlagged, []string{"review", "flagged", "pending"}},
	{ShowReport, []string{"report", "summary"}},
}

// KeywordClassifier matches case-insensitive substrings against a fixed vocabulary.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(text string) Intent {
	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if lower == "" {
		return Unknown
	}
	for _, r := range defaultRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.intent
			}
		}
	}
	return Unknown
}

var _ Classifier = KeywordClassifier{}
