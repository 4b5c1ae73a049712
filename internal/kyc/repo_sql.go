package kyc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timeLayout keeps stored timestamps fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLRepo implements RecordStore over database/sql. The queries run unchanged on
// Postgres (pgx) and SQLite (go-sqlite3).
type SQLRepo struct {
	DB *sql.DB
}

const recordColumns = `customer_id, customer_email, email_date, status, name, dob, id_type, id_number, id_expiry, address, report, documents, validation_result, flags, processed_at`

// Get returns the record for customerID.
func (r *SQLRepo) Get(ctx context.Context, customerID string) (CustomerRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM kyc_records WHERE customer_id = $1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CustomerRecord{}, ErrNotFound
		}
		return CustomerRecord{}, &StoreError{Op: "get", CustomerID: customerID, Err: err}
	}
	return rec, nil
}

// Upsert inserts or fully replaces the record in a single statement.
func (r *SQLRepo) Upsert(ctx context.Context, rec CustomerRecord) error {
	if rec.CustomerID == "" {
		return &StoreError{Op: "upsert", Err: errEmptyCustomerID}
	}
	const query = `
INSERT INTO kyc_records (
    customer_id,
    customer_email,
    email_date,
    status,
    name,
    dob,
    id_type,
    id_number,
    id_expiry,
    address,
    report,
    documents,
    validation_result,
    flags,
    processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (customer_id) DO UPDATE SET
    customer_email = excluded.customer_email,
    email_date = excluded.email_date,
    status = excluded.status,
    name = excluded.name,
    dob = excluded.dob,
    id_type = excluded.id_type,
    id_number = excluded.id_number,
    id_expiry = excluded.id_expiry,
    address = excluded.address,
    report = excluded.report,
    documents = excluded.documents,
    validation_result = excluded.validation_result,
    flags = excluded.flags,
    processed_at = excluded.processed_at`

	documents, err := marshalText(nonNilDocuments(rec.Documents))
	if err != nil {
		return &StoreError{Op: "upsert", CustomerID: rec.CustomerID, Err: fmt.Errorf("encode documents: %w", err)}
	}
	validation, err := marshalText(rec.ValidationResult)
	if err != nil {
		return &StoreError{Op: "upsert", CustomerID: rec.CustomerID, Err: fmt.Errorf("encode validation result: %w", err)}
	}
	flags, err := marshalText(nonNilStrings(rec.Flags))
	if err != nil {
		return &StoreError{Op: "upsert", CustomerID: rec.CustomerID, Err: fmt.Errorf("encode flags: %w", err)}
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		rec.CustomerID,
		rec.CustomerEmail,
		formatTime(rec.EmailDate),
		string(rec.Status),
		rec.Name,
		rec.DOB,
		rec.IDType,
		rec.IDNumber,
		rec.IDExpiry,
		rec.Address,
		rec.Report,
		documents,
		validation,
		flags,
		formatTime(rec.ProcessedAt),
	)
	if err != nil {
		return &StoreError{Op: "upsert", CustomerID: rec.CustomerID, Err: err}
	}
	return nil
}

// ListAll returns every record ordered by customer id.
func (r *SQLRepo) ListAll(ctx context.Context) ([]CustomerRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM kyc_records ORDER BY customer_id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []CustomerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return out, nil
}

// AppendLog inserts an audit entry.
func (r *SQLRepo) AppendLog(ctx context.Context, entry NotificationLogEntry) error {
	const query = `
INSERT INTO kyc_logs (id, logged_at, customer_id, action, details)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(ctx, query,
		entry.ID,
		formatTime(entry.Timestamp),
		entry.CustomerID,
		string(entry.Action),
		entry.Details,
	)
	if err != nil {
		return &StoreError{Op: "append_log", CustomerID: entry.CustomerID, Err: err}
	}
	return nil
}

// ListLogs returns audit entries newest first.
func (r *SQLRepo) ListLogs(ctx context.Context, limit int) ([]NotificationLogEntry, error) {
	query := `SELECT id, logged_at, customer_id, action, details FROM kyc_logs ORDER BY logged_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "list_logs", Err: err}
	}
	defer rows.Close()

	var out []NotificationLogEntry
	for rows.Next() {
		var (
			entry    NotificationLogEntry
			loggedAt string
			action   string
		)
		if err := rows.Scan(&entry.ID, &loggedAt, &entry.CustomerID, &action, &entry.Details); err != nil {
			return nil, &StoreError{Op: "list_logs", Err: err}
		}
		entry.Timestamp = parseTime(loggedAt)
		entry.Action = Action(action)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list_logs", Err: err}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CustomerRecord, error) {
	var (
		rec         CustomerRecord
		emailDate   string
		status      string
		documents   sql.NullString
		validation  sql.NullString
		flags       sql.NullString
		processedAt string
	)
	err := row.Scan(
		&rec.CustomerID,
		&rec.CustomerEmail,
		&emailDate,
		&status,
		&rec.Name,
		&rec.DOB,
		&rec.IDType,
		&rec.IDNumber,
		&rec.IDExpiry,
		&rec.Address,
		&rec.Report,
		&documents,
		&validation,
		&flags,
		&processedAt,
	)
	if err != nil {
		return CustomerRecord{}, err
	}
	rec.Status = Status(status)
	rec.EmailDate = parseTime(emailDate)
	rec.ProcessedAt = parseTime(processedAt)
	if documents.Valid && documents.String != "" {
		if err := json.Unmarshal([]byte(documents.String), &rec.Documents); err != nil {
			return CustomerRecord{}, fmt.Errorf("decode documents: %w", err)
		}
	}
	if validation.Valid && validation.String != "" {
		if err := json.Unmarshal([]byte(validation.String), &rec.ValidationResult); err != nil {
			return CustomerRecord{}, fmt.Errorf("decode validation result: %w", err)
		}
	}
	if flags.Valid && flags.String != "" {
		if err := json.Unmarshal([]byte(flags.String), &rec.Flags); err != nil {
			return CustomerRecord{}, fmt.Errorf("decode flags: %w", err)
		}
	}
	return rec, nil
}

func marshalText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nonNilDocuments(docs []Document) []Document {
	if docs == nil {
		return []Document{}
	}
	return docs
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ RecordStore = (*SQLRepo)(nil)
