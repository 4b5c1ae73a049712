package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newMailbox(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var sent []string
	pdf := base64.URLEncoding.EncodeToString([]byte("%PDF-1.4 passport"))
	png := base64.RawURLEncoding.EncodeToString([]byte("\x89PNG utility bill"))

	mux := http.NewServeMux()
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "subject:KYC", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("maxResults"))
		_, _ = io.WriteString(w, `{"messages":[{"id":"m1"},{"id":"broken"}]}`)
	})
	mux.HandleFunc("/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "m1",
			"internalDate": "1761523200000",
			"payload": map[string]any{
				"mimeType": "multipart/mixed",
				"headers": []map[string]string{
					{"name": "Subject", "value": "KYC - 98765"},
					{"name": "From", "value": "Jane Doe <jane@example.com>"},
					{"name": "Date", "value": "Mon, 27 Oct 2025 09:30:00 +0000"},
				},
				"parts": []map[string]any{
					{"mimeType": "text/plain", "filename": "", "body": map[string]any{"data": "aGk="}},
					{"mimeType": "application/pdf", "filename": "passport.pdf", "body": map[string]any{"data": pdf}},
					{"mimeType": "multipart/alternative", "parts": []map[string]any{
						{"mimeType": "image/png", "filename": "bill.png", "body": map[string]any{"attachmentId": "att-1"}},
						{"mimeType": "text/csv", "filename": "notes.csv", "body": map[string]any{"data": "eA=="}},
					}},
				},
			},
		})
	})
	mux.HandleFunc("/messages/m1/attachments/att-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":"`+png+`"}`)
	})
	mux.HandleFunc("/messages/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/messages/send", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		raw, err := base64.URLEncoding.DecodeString(payload["raw"])
		require.NoError(t, err)
		sent = append(sent, string(raw))
		_, _ = io.WriteString(w, `{"id":"sent-1"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestFetchKYCMessagesCollectsSupportedAttachments(t *testing.T) {
	srv, _ := newMailbox(t)
	client := New(srv.Client(), WithBaseURL(srv.URL), WithMaxResults(3))

	msgs, err := client.FetchKYCMessages(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, msgs, 1, "broken message should be skipped")

	msg := msgs[0]
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "KYC - 98765", msg.Subject)
	assert.Equal(t, "Jane Doe <jane@example.com>", msg.From)
	assert.Equal(t, time.Date(2025, time.October, 27, 9, 30, 0, 0, time.UTC), msg.Date)

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "passport.pdf", msg.Attachments[0].FileName)
	assert.Equal(t, "%PDF-1.4 passport", string(msg.Attachments[0].Data))
	assert.Equal(t, "bill.png", msg.Attachments[1].FileName)
	assert.Equal(t, "\x89PNG utility bill", string(msg.Attachments[1].Data))
}

func TestSendPostsRawMessage(t *testing.T) {
	srv, sent := newMailbox(t)
	client := New(srv.Client(), WithBaseURL(srv.URL))

	err := client.Send(context.Background(), "jane@example.com", "KYC Update Required - ID Expired for 98765", "Dear Jane,\nPlease update.")
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	raw := (*sent)[0]
	assert.True(t, strings.HasPrefix(raw, "To: jane@example.com\r\n"))
	assert.Contains(t, raw, "Content-Type: text/plain; charset=\"utf-8\"\r\n")
	assert.Contains(t, raw, "\r\n\r\nDear Jane,\r\nPlease update.")
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	client := New(nil)
	assert.Error(t, client.Send(context.Background(), " ", "s", "b"))
}

func TestSendSurfacesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := New(srv.Client(), WithBaseURL(srv.URL)).Send(context.Background(), "a@b.c", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gmail http status 429")
}

func TestMessageDateFallsBackToInternalDate(t *testing.T) {
	got := messageDate("not a date", "1761523200000")
	assert.Equal(t, time.UnixMilli(1761523200000).UTC(), got)
	assert.True(t, messageDate("", "").IsZero())
}

func TestReadTokenRequiresCredentialMaterial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err := readToken(path)
	assert.Error(t, err)

	require.NoError(t, writeToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))
	tok, err := readToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
}
