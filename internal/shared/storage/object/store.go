// Package object archives KYC attachments and their extracted text.
package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/google/uuid"

	"kyc-backend/internal/shared/util"
)

// ObjectStore archives raw attachments and derived artifacts.
type ObjectStore interface {
	// Save stores r under namespace with a random prefix and returns the generated key.
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	// SaveWithKey stores r at an exact key, overwriting anything there.
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// AttachmentKey builds "<customer>/<uuid>_<file>" so resubmissions of the same
// file name never overwrite earlier evidence.
func AttachmentKey(namespace, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.NamespaceKey(namespace), uuid.NewString()+"_"+name), nil
}

// TextKey is where the extracted text of the attachment at storageKey lives.
func TextKey(storageKey string) string {
	return storageKey + ".extracted.txt"
}

// Sniff detects the content type from the first 512 bytes of r. The returned
// reader replays those bytes followed by the rest of r.
func Sniff(r io.Reader) (string, io.Reader, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	return http.DetectContentType(head[:n]), io.MultiReader(bytes.NewReader(head[:n]), r), nil
}
