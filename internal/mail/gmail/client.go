// Package gmail implements mail.Inbox and mail.Sender over the Gmail REST API.
// Authorization is delegated to the *http.Client, normally one built by
// golang.org/x/oauth2.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	netmail "net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kyc-backend/internal/extract"
	"kyc-backend/internal/mail"
	"kyc-backend/internal/shared/telemetry"
)

const (
	DefaultBaseURL    = "https://gmail.googleapis.com/gmail/v1/users/me"
	DefaultMaxResults = 5
)

// Client talks to one mailbox.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxResults int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithMaxResults limits how many messages one fetch returns.
func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// New wraps an authorized HTTP client.
func New(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{httpClient: httpClient, baseURL: DefaultBaseURL, maxResults: DefaultMaxResults}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type messagePart struct {
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		AttachmentID string `json:"attachmentId"`
		Data         string `json:"data"`
		Size         int    `json:"size"`
	} `json:"body"`
	Parts []messagePart `json:"parts"`
}

type messageResponse struct {
	ID           string      `json:"id"`
	InternalDate string      `json:"internalDate"`
	Payload      messagePart `json:"payload"`
}

type attachmentResponse struct {
	Data string `json:"data"`
}

// FetchKYCMessages lists messages matching query and downloads their supported
// attachments. A message that fails to load is logged and skipped.
func (c *Client) FetchKYCMessages(ctx context.Context, query string) ([]mail.Message, error) {
	if strings.TrimSpace(query) == "" {
		query = mail.DefaultQuery
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(c.maxResults))

	var list listResponse
	if err := c.getJSON(ctx, "/messages?"+params.Encode(), &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]mail.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := c.fetchMessage(ctx, ref.ID)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			telemetry.Warn("gmail.message.fetch_failed", map[string]any{
				"message_id": ref.ID,
				"error":      err.Error(),
			})
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Client) fetchMessage(ctx context.Context, id string) (mail.Message, error) {
	var resp messageResponse
	if err := c.getJSON(ctx, "/messages/"+url.PathEscape(id)+"?format=full", &resp); err != nil {
		return mail.Message{}, err
	}

	msg := mail.Message{
		ID:      resp.ID,
		Subject: header(resp.Payload, "Subject"),
		From:    header(resp.Payload, "From"),
		Date:    messageDate(header(resp.Payload, "Date"), resp.InternalDate),
	}

	var walk func(p messagePart) error
	walk = func(p messagePart) error {
		if p.Filename != "" && extract.Supported(p.Filename) {
			data, err := c.partData(ctx, resp.ID, p)
			if err != nil {
				return fmt.Errorf("attachment %s: %w", p.Filename, err)
			}
			msg.Attachments = append(msg.Attachments, mail.Attachment{
				FileName: p.Filename,
				MimeType: p.MimeType,
				Data:     data,
			})
		}
		for _, child := range p.Parts {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(resp.Payload); err != nil {
		return mail.Message{}, err
	}
	return msg, nil
}

func (c *Client) partData(ctx context.Context, messageID string, p messagePart) ([]byte, error) {
	encoded := p.Body.Data
	if encoded == "" && p.Body.AttachmentID != "" {
		var att attachmentResponse
		path := "/messages/" + url.PathEscape(messageID) + "/attachments/" + url.PathEscape(p.Body.AttachmentID)
		if err := c.getJSON(ctx, path, &att); err != nil {
			return nil, err
		}
		encoded = att.Data
	}
	if encoded == "" {
		return nil, errors.New("attachment has no data")
	}
	return decodeBase64URL(encoded)
}

// Send posts a plain-text RFC 2822 message through messages/send.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is empty")
	}
	raw := BuildMessage(to, subject, body)
	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// BuildMessage renders a minimal UTF-8 plain-text message.
func BuildMessage(to, subject, body string) []byte {
	var buf bytes.Buffer
	buf.WriteString("To: " + to + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gmail http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode gmail response: %w", err)
	}
	return nil
}

func header(p messagePart, name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func messageDate(raw, internalMillis string) time.Time {
	if t, err := netmail.ParseDate(strings.TrimSpace(raw)); err == nil {
		return t.UTC()
	}
	if ms, err := strconv.ParseInt(internalMillis, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func decodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

var (
	_ mail.Inbox  = (*Client)(nil)
	_ mail.Sender = (*Client)(nil)
)
