package extract

import (
	"context"
	"strings"

	"kyc-backend/internal/shared/storage/object"
)

// SaveExtracted persists text next to the archived document at object.TextKey(key).
func SaveExtracted(ctx context.Context, store object.ObjectStore, key string, text string) (string, error) {
	extractedKey := object.TextKey(key)
	if _, err := store.SaveWithKey(ctx, extractedKey, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", err
	}
	return extractedKey, nil
}
