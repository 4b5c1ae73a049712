package kyc

import (
	"context"
	"errors"
)

// RecordStore persists customer records and the notification audit log.
type RecordStore interface {
	Get(ctx context.Context, customerID string) (CustomerRecord, error)
	Upsert(ctx context.Context, rec CustomerRecord) error
	ListAll(ctx context.Context) ([]CustomerRecord, error)
	AppendLog(ctx context.Context, entry NotificationLogEntry) error
	// ListLogs returns the newest entries first. limit <= 0 returns everything.
	ListLogs(ctx context.Context, limit int) ([]NotificationLogEntry, error)
}

var errEmptyCustomerID = errors.New("customer id is empty")
