package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kyc-backend/internal/kyc"
	localstore "kyc-backend/internal/shared/storage/object/local"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
	mime  string
}

func (f *fakeOCR) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.calls++
	f.mime = mimeType
	return f.text, f.err
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create docx entry: %v", err)
	}
	doc := `<w:document xmlns:w="x"><w:body><w:p><w:r><w:t>` + body + `</w:t></w:r></w:p><w:p><w:r><w:t>Second line</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write docx entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractImageUsesOCR(t *testing.T) {
	ocr := &fakeOCR{text: "REPUBLIC OF INDIA PASSPORT"}
	got, err := New(ocr).Extract(context.Background(), "ref-1", "scan.jpg", "", []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ocr.calls != 1 || ocr.mime != MimeJPEG {
		t.Fatalf("ocr calls=%d mime=%s", ocr.calls, ocr.mime)
	}
	if got.Role != kyc.RoleIDProof {
		t.Fatalf("role = %s", got.Role)
	}
	if got.Ref != "ref-1" || got.FileName != "scan.jpg" {
		t.Fatalf("unexpected ref/name: %+v", got)
	}
}

func TestExtractBrokenPDFFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "Electricity bill for May"}
	got, err := New(ocr).Extract(context.Background(), "ref-2", "doc.pdf", MimePDF, []byte("%PDF-1.4 not really a pdf"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ocr.calls != 1 {
		t.Fatalf("expected OCR fallback, calls=%d", ocr.calls)
	}
	if got.Role != kyc.RoleAddressProof {
		t.Fatalf("role = %s", got.Role)
	}
}

func TestExtractImageWithoutOCRFails(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), "ref-3", "scan.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	var extractionErr *kyc.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractionErr.Ref != "ref-3" || !errors.Is(err, ErrNoOCR) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractOCRFailureIsExtractionError(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("quota exceeded")}
	_, err := New(ocr).Extract(context.Background(), "ref-4", "scan.png", "", []byte{1})
	var extractionErr *kyc.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, "Bank statement for account 1234")
	got, err := New(nil).Extract(context.Background(), "ref-5", "statement.docx", "application/zip", data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got.Text, "Bank statement") || !strings.Contains(got.Text, "Second line") {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Role != kyc.RoleAddressProof {
		t.Fatalf("role = %s", got.Role)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), "ref-6", "notes.txt", "text/plain", []byte("hello"))
	if err == nil || !strings.Contains(err.Error(), "unsupported mime type: text/plain") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	_, err := New(nil).Extract(context.Background(), "ref-7", "x.pdf", MimePDF, nil)
	var extractionErr *kyc.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestNormalizeMimeType(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		fileName string
		data     []byte
		want     string
	}{
		{name: "declared pdf", mime: "application/pdf; charset=binary", fileName: "x", want: MimePDF},
		{name: "jpg alias", mime: "image/jpg", fileName: "x", want: MimeJPEG},
		{name: "octet stream with extension", mime: "application/octet-stream", fileName: "ID.JPEG", want: MimeJPEG},
		{name: "sniffed pdf", mime: "", fileName: "attachment", data: []byte("%PDF-1.7\n"), want: MimePDF},
		{name: "unknown", mime: "", fileName: "x", want: "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMimeType(tt.mime, tt.fileName, tt.data); got != tt.want {
				t.Fatalf("NormalizeMimeType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.pdf":  true,
		"a.PNG":  true,
		"a.jpg":  true,
		"a.jpeg": true,
		"a.docx": true,
		"a.txt":  false,
		"a":      false,
	} {
		if got := Supported(name); got != want {
			t.Fatalf("Supported(%q) = %v", name, got)
		}
	}
}

func TestSaveExtractedWritesSidecar(t *testing.T) {
	dir := t.TempDir()
	store := localstore.New(dir)

	key, err := SaveExtracted(context.Background(), store, "1001/doc.pdf", "hello")
	if err != nil {
		t.Fatalf("SaveExtracted: %v", err)
	}
	if key != "1001/doc.pdf.extracted.txt" {
		t.Fatalf("key = %s", key)
	}
	f, err := os.Open(filepath.Join(dir, key))
	if err != nil {
		t.Fatalf("open sidecar: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "hello" {
		t.Fatalf("sidecar = %q", data)
	}
}
