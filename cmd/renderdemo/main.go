package main

// renderdemo previews the notices the engine would send for a sample set of
// records, without sending anything.

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"kyc-backend/internal/kyc"
	"kyc-backend/internal/notify"
)

func main() {
	outDir := flag.String("out", "", "Directory to write one .txt file per notice (optional)")
	todayFlag := flag.String("today", "", "Date to scan as, YYYY-MM-DD (default today)")
	window := flag.Int("window", notify.DefaultReminderWindowDays, "Reminder window in days")
	flag.Parse()

	today := time.Now().UTC()
	if *todayFlag != "" {
		parsed, ok := kyc.ParseDate(*todayFlag)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid -today: %s\n", *todayFlag)
			os.Exit(1)
		}
		today = parsed
	}

	scan := notify.Scan(sampleRecords(today), today, notify.ScanOptions{ReminderWindowDays: *window})
	if err := writeNotices(os.Stdout, *outDir, scan.Jobs); err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: rendered %d notices (%d records without email)\n", len(scan.Jobs), scan.MissingEmail)
}

func writeNotices(w io.Writer, outDir string, jobs []notify.Job) error {
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}
	for _, job := range jobs {
		subject, body, err := notify.Render(job)
		if err != nil {
			return fmt.Errorf("customer %s: %w", job.Record.CustomerID, err)
		}
		text := fmt.Sprintf("To: %s\nSubject: %s\n\n%s", job.Record.CustomerEmail, subject, body)
		fmt.Fprintf(w, "--- %s %s ---\n%s\n", job.Action, job.Record.CustomerID, text)

		if outDir == "" {
			continue
		}
		name := fmt.Sprintf("%s_%s.txt", job.Record.CustomerID, job.Action)
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(text), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func sampleRecords(today time.Time) []kyc.CustomerRecord {
	date := func(days int) string { return today.AddDate(0, 0, days).Format(kyc.DateLayout) }
	return []kyc.CustomerRecord{
		{CustomerID: "98765", CustomerEmail: "asha@example.com", Name: "Asha Rao", Status: kyc.StatusApproved, IDExpiry: date(5)},
		{CustomerID: "1001", CustomerEmail: "li@example.com", Name: "Li Wei", Status: kyc.StatusApproved, IDExpiry: date(15)},
		{CustomerID: "2002", CustomerEmail: "", Name: "No Email", Status: kyc.StatusApproved, IDExpiry: date(3)},
		{CustomerID: "3003", CustomerEmail: "sam@example.com", Status: kyc.StatusApproved, IDExpiry: date(-2)},
		{CustomerID: "4004", CustomerEmail: "far@example.com", Name: "Far Future", Status: kyc.StatusApproved, IDExpiry: date(400)},
	}
}
