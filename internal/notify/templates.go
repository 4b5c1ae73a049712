package notify

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"kyc-backend/internal/kyc"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var templates = map[kyc.Action]*template.Template{
	kyc.ActionExpiryNotice: template.Must(template.ParseFS(templateFiles, "templates/expiry_notice.tmpl")),
	kyc.ActionReminder:     template.Must(template.ParseFS(templateFiles, "templates/reminder.tmpl")),
}

type messageData struct {
	CustomerID      string
	Name            string
	IDExpiry        string
	DueInDays       int
	DaysUntilExpiry int
}

// Render returns the subject and plain-text body for job.
func Render(job Job) (string, string, error) {
	tmpl, ok := templates[job.Action]
	if !ok {
		return "", "", fmt.Errorf("no template for action %s", job.Action)
	}
	data := messageData{
		CustomerID:      job.Record.CustomerID,
		Name:            job.Record.Name,
		IDExpiry:        job.Record.IDExpiry,
		DueInDays:       job.DueInDays,
		DaysUntilExpiry: job.DaysUntilExpiry,
	}
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "Valued Customer"
	}

	var subject, body strings.Builder
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", err
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
