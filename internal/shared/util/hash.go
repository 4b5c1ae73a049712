package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashKey returns a stable hex digest of s.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NamespaceKey returns a path-safe directory name for a customer namespace.
// Plain identifiers are kept readable; anything else is hashed.
func NamespaceKey(namespace string) string {
	trimmed := strings.TrimSpace(namespace)
	if trimmed == "" {
		return "unassigned"
	}
	for _, ch := range trimmed {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
		default:
			return HashKey(trimmed)
		}
	}
	return trimmed
}
