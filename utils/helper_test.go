package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ryan", "ryan"},
		{"  Selmel Liquors  ", "selmel liquors"},
		{"KINGFISHER", "kingfisher"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range tests {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"25.9987", "26"},
		{"0.025", "0.03"},
		{"0.024", "0.02"},
		{"141600", "141600"},
		{"-0.025", "-0.03"},
	}
	for _, tc := range tests {
		got := Round2(decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Round2(%s) = %s, want %s", tc.in, got.String(), tc.want)
		}
	}
}

func TestFormatQty(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50.0000", "50"},
		{"2.5000", "2.5"},
		{"800", "800"},
		{"0.0000", "0"},
	}
	for _, tc := range tests {
		if got := FormatQty(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("FormatQty(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
