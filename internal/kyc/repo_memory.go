package kyc

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory RecordStore.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]CustomerRecord
	logs    []NotificationLogEntry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		records: make(map[string]CustomerRecord),
	}
}

// Get returns the record for customerID.
func (r *MemoryRepo) Get(ctx context.Context, customerID string) (CustomerRecord, error) {
	if err := ctx.Err(); err != nil {
		return CustomerRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[customerID]
	if !ok {
		return CustomerRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Upsert replaces the record keyed by rec.CustomerID.
func (r *MemoryRepo) Upsert(ctx context.Context, rec CustomerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.CustomerID == "" {
		return &StoreError{Op: "upsert", Err: errEmptyCustomerID}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.CustomerID] = cloneRecord(rec)
	return nil
}

// ListAll returns every record ordered by customer id.
func (r *MemoryRepo) ListAll(ctx context.Context) ([]CustomerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]CustomerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CustomerID < out[j].CustomerID
	})
	return out, nil
}

// AppendLog appends an audit entry.
func (r *MemoryRepo) AppendLog(ctx context.Context, entry NotificationLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

// ListLogs returns audit entries newest first.
func (r *MemoryRepo) ListLogs(ctx context.Context, limit int) ([]NotificationLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.logs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]NotificationLogEntry, 0, n)
	for i := len(r.logs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.logs[i])
	}
	return out, nil
}

func cloneRecord(rec CustomerRecord) CustomerRecord {
	rec.Flags = append([]string(nil), rec.Flags...)
	rec.Documents = append([]Document(nil), rec.Documents...)
	rec.ValidationResult.Flags = append([]string(nil), rec.ValidationResult.Flags...)
	rec.ValidationResult.MissingDocuments = append([]string(nil), rec.ValidationResult.MissingDocuments...)
	rec.ValidationResult.Raw = append([]byte(nil), rec.ValidationResult.Raw...)
	return rec
}

var _ RecordStore = (*MemoryRepo)(nil)
