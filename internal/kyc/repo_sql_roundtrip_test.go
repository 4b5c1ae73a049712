package kyc

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagedb "kyc-backend/internal/shared/storage/db"
)

func openSQLiteRepo(t *testing.T) *SQLRepo {
	t.Helper()
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "kyc.db")

	database, err := storagedb.Connect(ctx, url, storagedb.DefaultCLIOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, storagedb.RunMigrations(ctx, database, url))
	return &SQLRepo{DB: database}
}

func TestSQLRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openSQLiteRepo(t)

	malformed := sampleRecord("2001")
	malformed.Status = StatusHumanReview
	malformed.Report = "Model output could not be parsed."
	malformed.ValidationResult = ValidationResult{
		Status: StatusHumanReview,
		Flags:  []string{FlagMalformedOutput},
		Raw:    json.RawMessage("Sorry, I cannot help with that {"),
	}
	malformed.Flags = []string{FlagMalformedOutput}

	pretty := sampleRecord("2002")
	pretty.ValidationResult = ValidationResult{
		Status:           StatusApproved,
		Report:           "All documents consistent.",
		MissingDocuments: []string{"address_proof"},
		DataConsistency:  "consistent",
		Raw:              json.RawMessage("{\n  \"a\": 1,\n  \"status\": \"APPROVED\"\n}"),
	}

	for _, rec := range []CustomerRecord{malformed, pretty} {
		require.NoError(t, repo.Upsert(ctx, rec), rec.CustomerID)

		got, err := repo.Get(ctx, rec.CustomerID)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
		assert.Equal(t, string(rec.ValidationResult.Raw), string(got.ValidationResult.Raw))
	}

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []CustomerRecord{malformed, pretty}, all)
}

func TestSQLRepoRoundTripOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := openSQLiteRepo(t)

	rec := sampleRecord("3001")
	require.NoError(t, repo.Upsert(ctx, rec))

	rec.Status = StatusRejected
	rec.Flags = []string{ExpiredFlag(2)}
	rec.ValidationResult.Raw = json.RawMessage(`{"a": 1}`)
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.Get(ctx, "3001")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.True(t, HasExpiryFlag(got.Flags))
}
