package kyc

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStricterNeverRelaxes(t *testing.T) {
	all := []Status{StatusApproved, StatusHumanReview, StatusRejected}
	for _, a := range all {
		for _, b := range all {
			got := Stricter(a, b)
			if got.Rank() < a.Rank() || got.Rank() < b.Rank() {
				t.Fatalf("Stricter(%s, %s) = %s", a, b, got)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{raw: "approved", want: StatusApproved, ok: true},
		{raw: " Rejected ", want: StatusRejected, ok: true},
		{raw: "human review needed", want: StatusHumanReview, ok: true},
		{raw: "HUMAN-REVIEW-NEEDED", want: StatusHumanReview, ok: true},
		{raw: "maybe", want: StatusHumanReview, ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseStatus(%q) = %s,%v want %s,%v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAppendFlagsDedupes(t *testing.T) {
	got := AppendFlags([]string{"a"}, "b", "a", " ", "b", "c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("AppendFlags = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AppendFlags = %v", got)
		}
	}
}

func TestIsExpiryFlag(t *testing.T) {
	cases := []struct {
		flag string
		want bool
	}{
		{ExpiredFlag(4), true},
		{"ID expired 12 days ago on 2024-01-01", true},
		{"id expired", true},
		{"Document has expired on 2023-12-31", true},
		{"ID expired (passport)", true},
		{"Document expired per issuer", true},
		{"ID expired? unclear from scan", false},
		{ExpiresInFlag(4), false},
		{"Checked whether ID expired: no", false},
		{"ID expired: no", false},
		{"Not expired: ID expired check passed", false},
		{"ID expiry verified", false},
	}
	for _, tc := range cases {
		if got := IsExpiryFlag(tc.flag); got != tc.want {
			t.Errorf("IsExpiryFlag(%q) = %v, want %v", tc.flag, got, tc.want)
		}
	}
	if HasExpiryFlag([]string{"Checked whether ID expired: no", "note"}) {
		t.Fatal("negated expiry text must not count as expired")
	}
}

func TestValidationResultKeepsRawVerbatim(t *testing.T) {
	for _, raw := range []string{
		"Sorry, I cannot produce JSON for this customer.",
		"{\n  \"status\": \"APPROVED\",\n  \"flags\": []\n}",
		`{"a": 1}`,
	} {
		in := ValidationResult{Status: StatusHumanReview, Flags: []string{FlagMalformedOutput}, Raw: json.RawMessage(raw)}
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal(%q): %v", raw, err)
		}
		var out ValidationResult
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if string(out.Raw) != raw {
			t.Fatalf("raw = %q, want %q", out.Raw, raw)
		}
		if out.Status != in.Status || len(out.Flags) != 1 {
			t.Fatalf("decoded = %+v", out)
		}
	}
}

func TestValidationResultReadsEmbeddedRaw(t *testing.T) {
	var out ValidationResult
	if err := json.Unmarshal([]byte(`{"status":"APPROVED","raw":{"status":"APPROVED"}}`), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(out.Raw) != `{"status":"APPROVED"}` {
		t.Fatalf("raw = %s", out.Raw)
	}

	out = ValidationResult{}
	if err := json.Unmarshal([]byte(`{"status":"APPROVED"}`), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Raw != nil {
		t.Fatalf("raw = %q, want nil", out.Raw)
	}
}

func TestDaysBetweenIgnoresClock(t *testing.T) {
	a := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 1, 11, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 10 {
		t.Fatalf("DaysBetween = %d", got)
	}
}
