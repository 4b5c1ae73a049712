package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "passport scan.pdf", want: "passport scan.pdf"},
		{in: "  id/front.png ", want: "id_front.png"},
		{in: `C:\scans\bill.jpg`, want: "C:_scans_bill.jpg"},
		{in: "bill\x00\t.pdf", want: "bill.pdf"},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSanitizeFileNameRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "../etc/passwd", "a..b.pdf", "\x01\x02"} {
		_, err := SanitizeFileName(in)
		assert.ErrorIs(t, err, ErrInvalidFileName, "%q", in)
	}
}

func TestSanitizeFileNameShortensKeepingExtension(t *testing.T) {
	got, err := SanitizeFileName(strings.Repeat("é", 300) + ".pdf")
	require.NoError(t, err)
	assert.Equal(t, maxFileNameRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}
