package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const ocrInstruction = "Transcribe all text visible in this identity or address document. Return plain text only, preserving line breaks. Do not summarize."

// VisionOCR implements document OCR with a vision-capable chat model.
type VisionOCR struct {
	client *Client
}

// NewVisionOCR builds an OCR engine sharing credentials with base. model overrides
// the chat model when set.
func NewVisionOCR(base *Client, model string) *VisionOCR {
	c := *base
	if strings.TrimSpace(model) != "" {
		c.model = model
	}
	return &VisionOCR{client: &c}
}

// ExtractText sends the document to the model and returns the transcription.
func (o *VisionOCR) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	parts := []contentPart{{Type: "text", Text: ocrInstruction}}
	switch mimeType {
	case "image/png", "image/jpeg":
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURI}})
	case "application/pdf":
		parts = append(parts, contentPart{Type: "file", File: &filePart{FileName: "document.pdf", FileData: dataURI}})
	default:
		return "", fmt.Errorf("ocr unsupported mime type: %s", mimeType)
	}

	messages := []chatMessage{{Role: "user", Content: parts}}
	return o.client.complete(ctx, messages, false, "ocr")
}
