package extraction

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"3 748,50", "3748.50", true},
		{"3,748.50", "3748.50", true},
		{"3.748,50", "3748.50", true},
		{"3748", "3748", true},
		{"1'234.50", "1234.50", true},
		{"€ 99", "99", true},
		{"-120,00", "-120", true},
		{"1,234,567.89", "1234567.89", true},
		{"12,5", "12.5", true},
		{"1.234.567", "", false},
		{"1,234,567", "", false},
		{"12-5", "", false},
		{"abc", "", false},
		{"", "", false},
		{"-", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAmountReadsFormattedAmountBack(t *testing.T) {
	for _, raw := range []string{"0.01", "3748.5", "-42", "1000000.99"} {
		d := decimal.RequireFromString(raw)
		got, ok := ParseAmount(FormatAmount(d))
		if !ok || !got.Equal(d) {
			t.Errorf("ParseAmount(FormatAmount(%s)) = %s, %v", raw, got, ok)
		}
	}
}
