// Package extract turns raw KYC attachments into text. PDFs are read through their
// text layer first; images and PDFs without one go to the OCR engine.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"kyc-backend/internal/kyc"
)

const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ErrNoOCR is returned when a document needs OCR and no engine is configured.
var ErrNoOCR = errors.New("ocr engine not configured")

// OCR reads text out of an image or scanned document.
type OCR interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Extractor implements document text extraction with an OCR fallback.
type Extractor struct {
	OCR OCR
}

// New constructs an Extractor. ocr may be nil, in which case scanned documents fail.
func New(ocr OCR) *Extractor {
	return &Extractor{OCR: ocr}
}

// Extract returns the text and detected role for one document. Failures are
// reported as *kyc.ExtractionError carrying ref.
func (e *Extractor) Extract(ctx context.Context, ref, fileName, mimeType string, data []byte) (kyc.ExtractedDocumentText, error) {
	out := kyc.ExtractedDocumentText{Ref: ref, FileName: fileName}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, &kyc.ExtractionError{Ref: ref, Err: errors.New("empty document")}
	}

	normalized := NormalizeMimeType(mimeType, fileName, data)
	var (
		text string
		err  error
	)
	switch normalized {
	case MimePDF:
		text, err = extractPDF(data)
		if err != nil || strings.TrimSpace(text) == "" {
			text, err = e.ocr(ctx, data, normalized)
		}
	case MimePNG, MimeJPEG:
		text, err = e.ocr(ctx, data, normalized)
	case MimeDOCX:
		text, err = extractDOCX(data)
	default:
		err = fmt.Errorf("unsupported mime type: %s", normalized)
	}
	if err != nil {
		return out, &kyc.ExtractionError{Ref: ref, Err: err}
	}

	out.Text = strings.TrimSpace(text)
	out.Role = DetectRole(fileName, out.Text)
	return out, nil
}

func (e *Extractor) ocr(ctx context.Context, data []byte, mimeType string) (string, error) {
	if e.OCR == nil {
		return "", ErrNoOCR
	}
	text, err := e.OCR.ExtractText(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("ocr returned no text")
	}
	return text, nil
}

// Supported reports whether an attachment is a document type the pipeline reads.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf", ".png", ".jpg", ".jpeg", ".docx":
		return true
	default:
		return false
	}
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxText(rc), nil
	}
	return "", errors.New("document.xml file not found")
}

func docxText(r io.Reader) string {
	decoder := xml.NewDecoder(r)
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// NormalizeMimeType resolves the effective document type from the declared mime
// type, the file extension and the leading bytes.
func NormalizeMimeType(mimeType, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case MimePDF, MimePNG, MimeJPEG, MimeDOCX:
		return clean
	case "image/jpg", "image/pjpeg":
		return MimeJPEG
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".docx":
		return MimeDOCX
	}

	if len(data) > 0 {
		sniffed := strings.Split(http.DetectContentType(data), ";")[0]
		switch sniffed {
		case MimePDF, MimePNG, MimeJPEG:
			return sniffed
		case "application/zip":
			if isDOCX(data) {
				return MimeDOCX
			}
		}
	}
	if clean == "" {
		return "application/octet-stream"
	}
	return clean
}

func isDOCX(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
