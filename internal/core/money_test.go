package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCost(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"15.99", "15.99", true},
		{"15,99", "15.99", true},
		{" 2.50 ", "2.5", true},
		{"100", "100", true},
		{"-3", "-3", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseCost(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseStoredCost(t *testing.T) {
	for _, in := range []string{"15.99", " 0.125 ", "-3", "10"} {
		if _, err := ParseStoredCost(in); err != nil {
			t.Errorf("%q: unexpected error %v", in, err)
		}
	}
	for _, in := range []string{"", "15,99", "1e3", "abc", "1.2.3"} {
		if _, err := ParseStoredCost(in); err != ErrInvalidCost {
			t.Errorf("%q: err = %v, want ErrInvalidCost", in, err)
		}
	}
}

func TestParseDay(t *testing.T) {
	if d, err := ParseDay(" 31 "); err != nil || d != 31 {
		t.Fatalf("expected 31, got %d (err=%v)", d, err)
	}
	for _, in := range []string{"", "x", "3.5"} {
		if _, err := ParseDay(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
}

func TestFormatCost(t *testing.T) {
	if got := FormatCost(decimal.RequireFromString("2.5")); got != "2.50" {
		t.Fatalf("got %q", got)
	}
}
